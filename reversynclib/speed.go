package reversynclib

import (
	"github.com/reversync/reversync/base/appbase"
	"github.com/reversync/reversync/reversynclib/types"
)

// Default and ceiling values of the governor triad. Defaults apply when a
// destination gives no hint; ceilings bound whatever a destination asks for.
var (
	DefaultSpeedLimits = types.SpeedLimits{
		MaximumBatchSize:        1000,
		MaximumParallelBatches:  8,
		MaximumRecordsPerSecond: 100,
	}
	SpeedLimitCeilings = types.SpeedLimits{
		MaximumBatchSize:        10000,
		MaximumParallelBatches:  64,
		MaximumRecordsPerSecond: 10000,
	}
)

// Governor computes and validates sync speed limits. It is pure with respect
// to the plan: no sync history, no hidden runtime state, so repeated calls for
// the same logical sync return the same triad. Limits are scoped to a single
// sync plan - the governor does not coordinate limits across concurrently
// executing syncs against the same destination.
type Governor struct {
	appbase.Service
	destination Destination
}

func NewGovernor(destination Destination) *Governor {
	return &Governor{
		Service:     appbase.NewServiceBase("governor"),
		destination: destination,
	}
}

// ComputeSpeed returns the speed limit triad for a sync plan.
func (g *Governor) ComputeSpeed(plan *types.SyncPlan) (types.SpeedLimits, error) {
	if err := plan.Validate(); err != nil {
		return types.SpeedLimits{}, ErrConfiguration.Wrap(err, "invalid sync plan")
	}
	limits := DefaultSpeedLimits
	if hinter, ok := g.destination.(SpeedHinter); ok {
		if hint := hinter.SpeedHint(plan); hint != nil {
			if err := hint.Validate(); err != nil {
				return types.SpeedLimits{}, ErrConfiguration.Wrap(err, "invalid destination speed hint")
			}
			limits = clampSpeedLimits(*hint)
		}
	}
	return limits, nil
}

func clampSpeedLimits(limits types.SpeedLimits) types.SpeedLimits {
	if limits.MaximumBatchSize > SpeedLimitCeilings.MaximumBatchSize {
		limits.MaximumBatchSize = SpeedLimitCeilings.MaximumBatchSize
	}
	if limits.MaximumParallelBatches > SpeedLimitCeilings.MaximumParallelBatches {
		limits.MaximumParallelBatches = SpeedLimitCeilings.MaximumParallelBatches
	}
	if limits.MaximumRecordsPerSecond > SpeedLimitCeilings.MaximumRecordsPerSecond {
		limits.MaximumRecordsPerSecond = SpeedLimitCeilings.MaximumRecordsPerSecond
	}
	return limits
}
