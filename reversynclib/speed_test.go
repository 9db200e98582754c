package reversynclib

import (
	"testing"

	"github.com/joomcode/errorx"
	"github.com/reversync/reversync/reversynclib/types"
	"github.com/stretchr/testify/require"
)

func TestComputeSpeedDefaults(t *testing.T) {
	governor := NewGovernor(&stubDestination{})
	limits, err := governor.ComputeSpeed(testPlan(types.OperationUpsert))
	require.NoError(t, err)
	require.Equal(t, DefaultSpeedLimits, limits)
	require.GreaterOrEqual(t, limits.MaximumBatchSize, 1)
}

func TestComputeSpeedDeterministic(t *testing.T) {
	governor := NewGovernor(&stubDestination{})
	plan := testPlan(types.OperationUpsert)
	first, err := governor.ComputeSpeed(plan)
	require.NoError(t, err)
	second, err := governor.ComputeSpeed(plan)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestComputeSpeedHonorsHint(t *testing.T) {
	hint := &types.SpeedLimits{MaximumBatchSize: 50, MaximumParallelBatches: 2, MaximumRecordsPerSecond: 10}
	governor := NewGovernor(&stubDestination{speedHint: hint})
	limits, err := governor.ComputeSpeed(testPlan(types.OperationUpsert))
	require.NoError(t, err)
	require.Equal(t, *hint, limits)
}

func TestComputeSpeedClampsHint(t *testing.T) {
	hint := &types.SpeedLimits{MaximumBatchSize: 1000000, MaximumParallelBatches: 500, MaximumRecordsPerSecond: 1e9}
	governor := NewGovernor(&stubDestination{speedHint: hint})
	limits, err := governor.ComputeSpeed(testPlan(types.OperationUpsert))
	require.NoError(t, err)
	require.Equal(t, SpeedLimitCeilings, limits)
}

func TestComputeSpeedRejectsInvalidHint(t *testing.T) {
	hint := &types.SpeedLimits{MaximumBatchSize: 0, MaximumParallelBatches: 2, MaximumRecordsPerSecond: 10}
	governor := NewGovernor(&stubDestination{speedHint: hint})
	_, err := governor.ComputeSpeed(testPlan(types.OperationUpsert))
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, ErrConfiguration))
}

func TestComputeSpeedRejectsInvalidPlan(t *testing.T) {
	governor := NewGovernor(&stubDestination{})
	plan := testPlan(types.OperationUpsert)
	plan.Schema = nil
	_, err := governor.ComputeSpeed(plan)
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, ErrConfiguration))
}
