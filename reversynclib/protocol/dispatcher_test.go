package protocol

import (
	"context"
	"fmt"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/reversync/reversync/reversynclib"
	"github.com/reversync/reversync/reversynclib/types"
	"github.com/stretchr/testify/require"
)

// scriptedDestination overrides selected calls of an all-success destination.
type scriptedDestination struct {
	testConnectionErr error
	objects           []types.Object
	objectsErr        error
	fields            []types.Field
	operations        []types.Operation
	existing          map[string]bool
	persistErr        map[string]error
	panicOnListFields bool
}

func (s *scriptedDestination) Close() error { return nil }

func (s *scriptedDestination) TestConnection(context.Context) error { return s.testConnectionErr }

func (s *scriptedDestination) ListObjects(context.Context) ([]types.Object, error) {
	return s.objects, s.objectsErr
}

func (s *scriptedDestination) ListFields(context.Context, types.Object) ([]types.Field, error) {
	if s.panicOnListFields {
		panic("schema fetch corrupted")
	}
	return s.fields, nil
}

func (s *scriptedDestination) SupportedOperations(context.Context, types.Object) ([]types.Operation, error) {
	return s.operations, nil
}

func (s *scriptedDestination) Exists(_ context.Context, _ *types.SyncPlan, identifier any) (bool, error) {
	return s.existing[types.IdentifierKey(identifier)], nil
}

func (s *scriptedDestination) Persist(_ context.Context, plan *types.SyncPlan, record types.Record) error {
	identifier, err := record.IdentifierValue(plan)
	if err != nil {
		return err
	}
	return s.persistErr[types.IdentifierKey(identifier)]
}

func defaultScriptedDestination() *scriptedDestination {
	return &scriptedDestination{
		objects: []types.Object{{ObjectAPIName: "restaurants", Label: "Restaurants"}},
		fields: []types.Field{
			{FieldAPIName: "name", Label: "Name", Identifier: true, Type: types.StringType},
			{FieldAPIName: "outdoor_seating", Label: "Outdoor Seating", Type: types.BooleanType},
		},
		operations: []types.Operation{types.OperationUpsert, types.OperationInsert},
	}
}

func newTestDispatcher(destination reversynclib.Destination) *Dispatcher {
	governor := reversynclib.NewGovernor(destination)
	coordinator := reversynclib.NewCoordinator(destination, governor, &reversynclib.CoordinatorOptions{BatchTimeout: 5 * time.Second})
	return NewDispatcher(destination, governor, coordinator)
}

func dispatch(t *testing.T, dispatcher *Dispatcher, method string, params any) *Response {
	t.Helper()
	body, err := EncodeRequest(method, "test-request", params)
	require.NoError(t, err)
	response := dispatcher.Dispatch(context.Background(), body)
	require.NotNil(t, response)
	require.Equal(t, Version, response.JSONRPC)
	require.Equal(t, `"test-request"`, string(response.ID))
	return response
}

func decodeResult[T any](t *testing.T, response *Response) T {
	t.Helper()
	require.Nil(t, response.Err, "unexpected error: %v", response.Err)
	var result T
	require.NoError(t, jsoniter.Unmarshal(response.Result, &result))
	return result
}

func planParams(operation types.Operation) map[string]any {
	return map[string]any{
		"object":    map[string]any{"object_api_name": "restaurants", "label": "Restaurants"},
		"operation": string(operation),
		"schema": map[string]any{
			"name": map[string]any{
				"active_identifier": true,
				"field":             map[string]any{"field_api_name": "name", "identifier": true, "type": "string"},
			},
			"outdoor_seating": map[string]any{
				"field": map[string]any{"field_api_name": "outdoor_seating", "type": "boolean"},
			},
		},
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	response := dispatch(t, dispatcher, "bulk_load", map[string]any{})
	require.NotNil(t, response.Err)
	require.Equal(t, MethodNotFoundCode, response.Err.Code)
	require.Equal(t, "method not found: bulk_load", response.Err.Message)
}

func TestDispatchTestConnection(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	result := decodeResult[TestConnectionResult](t, dispatch(t, dispatcher, MethodTestConnection, map[string]any{}))
	require.True(t, result.Success)
	require.Empty(t, result.ErrorMessage)
}

func TestDispatchTestConnectionFailureIsNotAProtocolError(t *testing.T) {
	destination := defaultScriptedDestination()
	destination.testConnectionErr = fmt.Errorf("401 unauthorized")
	dispatcher := newTestDispatcher(destination)
	result := decodeResult[TestConnectionResult](t, dispatch(t, dispatcher, MethodTestConnection, map[string]any{}))
	require.False(t, result.Success)
	require.Contains(t, result.ErrorMessage, "401")
}

func TestDispatchListObjects(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	result := decodeResult[ListObjectsResult](t, dispatch(t, dispatcher, MethodListObjects, map[string]any{}))
	require.Len(t, result.Objects, 1)
	require.Equal(t, "restaurants", result.Objects[0].ObjectAPIName)
}

func TestDispatchListObjectsEmptyIsConfigurationError(t *testing.T) {
	destination := defaultScriptedDestination()
	destination.objects = nil
	dispatcher := newTestDispatcher(destination)
	response := dispatch(t, dispatcher, MethodListObjects, map[string]any{})
	require.NotNil(t, response.Err)
	require.Equal(t, ConfigurationErrorCode, response.Err.Code)
}

func TestDispatchListFields(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	params := map[string]any{"object": map[string]any{"object_api_name": "restaurants", "label": "Restaurants"}}
	result := decodeResult[ListFieldsResult](t, dispatch(t, dispatcher, MethodListFields, params))
	require.Len(t, result.Fields, 2)
}

func TestDispatchListFieldsInvalidDefinitionIsConfigurationError(t *testing.T) {
	destination := defaultScriptedDestination()
	destination.fields = []types.Field{
		{FieldAPIName: "tags", Identifier: true, Type: types.StringType, Array: true},
	}
	dispatcher := newTestDispatcher(destination)
	params := map[string]any{"object": map[string]any{"object_api_name": "restaurants"}}
	response := dispatch(t, dispatcher, MethodListFields, params)
	require.NotNil(t, response.Err)
	require.Equal(t, ConfigurationErrorCode, response.Err.Code)
}

func TestDispatchHandlerPanicBecomesError(t *testing.T) {
	destination := defaultScriptedDestination()
	destination.panicOnListFields = true
	dispatcher := newTestDispatcher(destination)
	params := map[string]any{"object": map[string]any{"object_api_name": "restaurants"}}
	response := dispatch(t, dispatcher, MethodListFields, params)
	require.NotNil(t, response.Err)
	require.Equal(t, InternalErrorCode, response.Err.Code)
}

func TestDispatchSupportedOperations(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	params := map[string]any{"object": map[string]any{"object_api_name": "restaurants"}}
	result := decodeResult[SupportedOperationsResult](t, dispatch(t, dispatcher, MethodSupportedOperations, params))
	require.ElementsMatch(t, []types.Operation{types.OperationUpsert, types.OperationInsert}, result.Operations)
}

func TestDispatchGetSyncSpeed(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	params := map[string]any{"sync_plan": planParams(types.OperationUpsert)}
	limits := decodeResult[types.SpeedLimits](t, dispatch(t, dispatcher, MethodGetSyncSpeed, params))
	require.GreaterOrEqual(t, limits.MaximumBatchSize, 1)
	require.GreaterOrEqual(t, limits.MaximumParallelBatches, 1)
	require.Greater(t, limits.MaximumRecordsPerSecond, 0.0)
}

func TestDispatchGetSyncSpeedInvalidPlan(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	params := map[string]any{"sync_plan": map[string]any{"operation": "upsert"}}
	response := dispatch(t, dispatcher, MethodGetSyncSpeed, params)
	require.NotNil(t, response.Err)
	require.Equal(t, ConfigurationErrorCode, response.Err.Code)
}

func TestDispatchSyncBatch(t *testing.T) {
	destination := defaultScriptedDestination()
	destination.persistErr = map[string]error{"Pizza House": fmt.Errorf("API Error, please retry")}
	dispatcher := newTestDispatcher(destination)
	params := map[string]any{
		"sync_plan": planParams(types.OperationUpsert),
		"records": []map[string]any{
			{"name": "Ashley's", "outdoor_seating": true},
			{"name": "Pizza House", "outdoor_seating": false},
		},
	}
	result := decodeResult[SyncBatchResult](t, dispatch(t, dispatcher, MethodSyncBatch, params))
	require.Len(t, result.RecordResults, 2)
	byIdentifier := map[string]types.RecordResult{}
	for _, recordResult := range result.RecordResults {
		byIdentifier[types.IdentifierKey(recordResult.Identifier)] = recordResult
	}
	require.True(t, byIdentifier["Ashley's"].Success)
	require.False(t, byIdentifier["Pizza House"].Success)
	require.Equal(t, "API Error, please retry", byIdentifier["Pizza House"].ErrorMessage)
}

func TestDispatchSyncBatchMalformedParams(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	body := []byte(`{"jsonrpc":"2.0","method":"sync_batch","id":"1","params":{"sync_plan":"not an object"}}`)
	response := dispatcher.Dispatch(context.Background(), body)
	require.NotNil(t, response.Err)
	require.Equal(t, InvalidParamsCode, response.Err.Code)
}

func TestDispatchMalformedBody(t *testing.T) {
	dispatcher := newTestDispatcher(defaultScriptedDestination())
	response := dispatcher.Dispatch(context.Background(), []byte(`{"jsonrpc":`))
	require.NotNil(t, response.Err)
	require.Equal(t, ParseErrorCode, response.Err.Code)
	require.Equal(t, "null", string(response.ID))
}
