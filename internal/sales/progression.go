package sales

import "github.com/onlyif-au/onlyif/internal/property"

// progression maps each pipeline state to the states reachable from it.
// Skipping ahead is reachable on purpose: sales recorded after the fact
// often arrive already unconditional or settled.
var progression = map[property.SalesStatus][]property.SalesStatus{
	property.SalesStatusNone: {
		property.SalesStatusContractExchanged,
		property.SalesStatusUnconditional,
		property.SalesStatusSettled,
	},
	property.SalesStatusContractExchanged: {
		property.SalesStatusUnconditional,
		property.SalesStatusSettled,
	},
	property.SalesStatusUnconditional: {
		property.SalesStatusSettled,
	},
	property.SalesStatusSettled: {},
}

// FollowsProgression reports whether moving current to target goes forward
// through the pipeline. Re-applying the current status counts as forward;
// the operation is idempotent by contract.
func FollowsProgression(current, target property.SalesStatus) bool {
	if current == target {
		return true
	}

	for _, allowed := range progression[current] {
		if allowed == target {
			return true
		}
	}

	return false
}
