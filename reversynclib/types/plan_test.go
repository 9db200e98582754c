package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPlan() *SyncPlan {
	return &SyncPlan{
		Object:    Object{ObjectAPIName: "restaurants", Label: "Restaurants"},
		Operation: OperationUpsert,
		Schema: map[string]SchemaEntry{
			"name": {
				ActiveIdentifier: true,
				Field:            Field{FieldAPIName: "name", Identifier: true, Type: StringType},
			},
			"outdoor_seating": {
				Field: Field{FieldAPIName: "outdoor_seating", Type: BooleanType},
			},
		},
	}
}

func TestSyncPlanValidate(t *testing.T) {
	require.NoError(t, testPlan().Validate())

	plan := testPlan()
	plan.Operation = Operation("merge")
	require.Error(t, plan.Validate())

	plan = testPlan()
	plan.Schema = map[string]SchemaEntry{}
	require.Error(t, plan.Validate())

	// no active identifier
	plan = testPlan()
	entry := plan.Schema["name"]
	entry.ActiveIdentifier = false
	plan.Schema["name"] = entry
	require.Error(t, plan.Validate())

	// two active identifiers
	plan = testPlan()
	entry = plan.Schema["outdoor_seating"]
	entry.ActiveIdentifier = true
	plan.Schema["outdoor_seating"] = entry
	require.Error(t, plan.Validate())

	// active identifier maps to a non-identifier field
	plan = testPlan()
	entry = plan.Schema["name"]
	entry.Field.Identifier = false
	plan.Schema["name"] = entry
	require.Error(t, plan.Validate())
}

func TestActiveIdentifier(t *testing.T) {
	plan := testPlan()
	localName, field, err := plan.ActiveIdentifier()
	require.NoError(t, err)
	require.Equal(t, "name", localName)
	require.Equal(t, "name", field.FieldAPIName)
}

func TestRecordIdentifierValue(t *testing.T) {
	plan := testPlan()
	record := Record{"name": "Ashley's", "outdoor_seating": true}
	value, err := record.IdentifierValue(plan)
	require.NoError(t, err)
	require.Equal(t, "Ashley's", value)

	_, err = Record{"outdoor_seating": true}.IdentifierValue(plan)
	require.Error(t, err)

	_, err = Record{"name": nil}.IdentifierValue(plan)
	require.Error(t, err)
}

func TestIdentifierKey(t *testing.T) {
	// integer identifiers decoded from JSON must collapse to the same key
	// regardless of the decoder's number representation
	require.Equal(t, IdentifierKey(float64(42)), IdentifierKey(int(42)))
	require.Equal(t, IdentifierKey(json.Number("42")), IdentifierKey(int64(42)))
	require.Equal(t, "42", IdentifierKey(float64(42)))
	require.Equal(t, "Ashley's", IdentifierKey("Ashley's"))
	require.NotEqual(t, IdentifierKey("42"), IdentifierKey("043"))
}

func TestSpeedLimitsValidate(t *testing.T) {
	require.NoError(t, SpeedLimits{MaximumBatchSize: 1, MaximumParallelBatches: 1, MaximumRecordsPerSecond: 0.5}.Validate())
	require.Error(t, SpeedLimits{MaximumBatchSize: 0, MaximumParallelBatches: 1, MaximumRecordsPerSecond: 1}.Validate())
	require.Error(t, SpeedLimits{MaximumBatchSize: 1, MaximumParallelBatches: -1, MaximumRecordsPerSecond: 1}.Validate())
	require.Error(t, SpeedLimits{MaximumBatchSize: 1, MaximumParallelBatches: 1}.Validate())
}
