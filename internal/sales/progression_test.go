package sales_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onlyif-au/onlyif/internal/property"
	"github.com/onlyif-au/onlyif/internal/sales"
)

func TestFollowsProgression(t *testing.T) {
	type testCase struct {
		name    string
		current property.SalesStatus
		target  property.SalesStatus
		want    bool
	}

	tests := []testCase{
		{"FreshToContractExchanged", property.SalesStatusNone, property.SalesStatusContractExchanged, true},
		{"FreshToUnconditional", property.SalesStatusNone, property.SalesStatusUnconditional, true},
		{"FreshStraightToSettled", property.SalesStatusNone, property.SalesStatusSettled, true},
		{"ContractToUnconditional", property.SalesStatusContractExchanged, property.SalesStatusUnconditional, true},
		{"ContractSkipsToSettled", property.SalesStatusContractExchanged, property.SalesStatusSettled, true},
		{"UnconditionalToSettled", property.SalesStatusUnconditional, property.SalesStatusSettled, true},
		{"SettledRepeated", property.SalesStatusSettled, property.SalesStatusSettled, true},
		{"UnconditionalRepeated", property.SalesStatusUnconditional, property.SalesStatusUnconditional, true},
		{"UnconditionalBackToContract", property.SalesStatusUnconditional, property.SalesStatusContractExchanged, false},
		{"SettledBackToUnconditional", property.SalesStatusSettled, property.SalesStatusUnconditional, false},
		{"SettledBackToContract", property.SalesStatusSettled, property.SalesStatusContractExchanged, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sales.FollowsProgression(tt.current, tt.target))
		})
	}
}
