package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/joomcode/errorx"
	"github.com/reversync/reversync/base/appbase"
	"github.com/reversync/reversync/base/metrics"
	"github.com/reversync/reversync/reversynclib"
	"github.com/reversync/reversync/reversynclib/types"
)

// The closed method set of the connector protocol.
const (
	MethodTestConnection      = "test_connection"
	MethodListObjects         = "list_objects"
	MethodListFields          = "list_fields"
	MethodSupportedOperations = "supported_operations"
	MethodGetSyncSpeed        = "get_sync_speed"
	MethodSyncBatch           = "sync_batch"
)

type TestConnectionResult struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type ListObjectsResult struct {
	Objects []types.Object `json:"objects"`
}

type ObjectParams struct {
	Object types.Object `json:"object"`
}

type ListFieldsResult struct {
	Fields []types.Field `json:"fields"`
}

type SupportedOperationsResult struct {
	Operations []types.Operation `json:"operations"`
}

type GetSyncSpeedParams struct {
	SyncPlan types.SyncPlan `json:"sync_plan"`
}

type SyncBatchParams struct {
	SyncPlan types.SyncPlan `json:"sync_plan"`
	Records  []types.Record `json:"records"`
}

type SyncBatchResult struct {
	RecordResults []types.RecordResult `json:"record_results"`
}

// Dispatcher routes decoded requests to their handlers and converts every
// failure mode, panics included, into a structured JSON-RPC error response.
// A malformed or missing response is classified by the orchestrator as an
// opaque unknown error, so one well-formed response per request is the hard
// contract here. The dispatcher keeps no state between requests: retried
// requests arrive indistinguishable from fresh ones.
type Dispatcher struct {
	appbase.Service
	destination reversynclib.Destination
	governor    *reversynclib.Governor
	coordinator *reversynclib.Coordinator
}

func NewDispatcher(destination reversynclib.Destination, governor *reversynclib.Governor, coordinator *reversynclib.Coordinator) *Dispatcher {
	return &Dispatcher{
		Service:     appbase.NewServiceBase("dispatcher"),
		destination: destination,
		governor:    governor,
		coordinator: coordinator,
	}
}

// Dispatch decodes a request body and produces exactly one response envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) *Response {
	request, decodeErr := DecodeRequest(body)
	if decodeErr != nil {
		return ErrorResponse(nil, decodeErr.Code, decodeErr.Message)
	}
	return d.DispatchRequest(ctx, request)
}

// DispatchRequest produces exactly one response envelope for a decoded request.
func (d *Dispatcher) DispatchRequest(ctx context.Context, request *Request) *Response {
	result, err := d.handle(ctx, request)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return ErrorResponse(request.ID, rpcErr.Code, rpcErr.Message)
		}
		return ErrorResponse(request.ID, errorCode(err), err.Error())
	}
	response, err := OkResponse(request.ID, result)
	if err != nil {
		d.SystemErrorf("error encoding %s result: %v", request.Method, err)
		return ErrorResponse(request.ID, InternalErrorCode, "error encoding result")
	}
	return response
}

// handle runs the method handler, converting panics into errors.
func (d *Dispatcher) handle(ctx context.Context, request *Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.SystemErrorf("panic in %s handler: %v", request.Method, r)
			result = nil
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	switch request.Method {
	case MethodTestConnection:
		return d.handleTestConnection(ctx)
	case MethodListObjects:
		return d.handleListObjects(ctx)
	case MethodListFields:
		return d.handleListFields(ctx, request.Params)
	case MethodSupportedOperations:
		return d.handleSupportedOperations(ctx, request.Params)
	case MethodGetSyncSpeed:
		return d.handleGetSyncSpeed(request.Params)
	case MethodSyncBatch:
		return d.handleSyncBatch(ctx, request.Params)
	default:
		return nil, &Error{Code: MethodNotFoundCode, Message: fmt.Sprintf("method not found: %s", request.Method)}
	}
}

// handleTestConnection reports connectivity failure inside result: an
// unreachable destination is a logical outcome, not a protocol error.
func (d *Dispatcher) handleTestConnection(ctx context.Context) (any, error) {
	if err := d.destination.TestConnection(ctx); err != nil {
		return TestConnectionResult{Success: false, ErrorMessage: err.Error()}, nil
	}
	return TestConnectionResult{Success: true}, nil
}

func (d *Dispatcher) handleListObjects(ctx context.Context) (any, error) {
	objects, err := d.destination.ListObjects(ctx)
	if err != nil {
		return nil, reversynclib.ErrDestination.Wrap(err, "list_objects failed")
	}
	if len(objects) == 0 {
		return nil, reversynclib.ErrConfiguration.New("destination exposes no objects")
	}
	for _, object := range objects {
		if err = object.Validate(); err != nil {
			return nil, reversynclib.ErrConfiguration.Wrap(err, "invalid object definition")
		}
	}
	return ListObjectsResult{Objects: objects}, nil
}

func (d *Dispatcher) handleListFields(ctx context.Context, params []byte) (any, error) {
	var p ObjectParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, reversynclib.ErrProtocol.Wrap(err, "invalid list_fields params")
	}
	if err := p.Object.Validate(); err != nil {
		return nil, reversynclib.ErrProtocol.Wrap(err, "invalid list_fields params")
	}
	fields, err := d.destination.ListFields(ctx, p.Object)
	if err != nil {
		return nil, reversynclib.ErrDestination.Wrap(err, "list_fields failed")
	}
	if err = types.ValidateFields(fields); err != nil {
		return nil, reversynclib.ErrConfiguration.Wrap(err, "invalid field definitions for object %s", p.Object.ObjectAPIName)
	}
	return ListFieldsResult{Fields: fields}, nil
}

func (d *Dispatcher) handleSupportedOperations(ctx context.Context, params []byte) (any, error) {
	var p ObjectParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, reversynclib.ErrProtocol.Wrap(err, "invalid supported_operations params")
	}
	if err := p.Object.Validate(); err != nil {
		return nil, reversynclib.ErrProtocol.Wrap(err, "invalid supported_operations params")
	}
	operations, err := d.destination.SupportedOperations(ctx, p.Object)
	if err != nil {
		return nil, reversynclib.ErrDestination.Wrap(err, "supported_operations failed")
	}
	if err = types.ValidateOperations(operations); err != nil {
		return nil, reversynclib.ErrConfiguration.Wrap(err, "invalid operations for object %s", p.Object.ObjectAPIName)
	}
	return SupportedOperationsResult{Operations: operations}, nil
}

func (d *Dispatcher) handleGetSyncSpeed(params []byte) (any, error) {
	var p GetSyncSpeedParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, reversynclib.ErrProtocol.Wrap(err, "invalid get_sync_speed params")
	}
	limits, err := d.governor.ComputeSpeed(&p.SyncPlan)
	if err != nil {
		return nil, err
	}
	return limits, nil
}

func (d *Dispatcher) handleSyncBatch(ctx context.Context, params []byte) (any, error) {
	var p SyncBatchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, reversynclib.ErrProtocol.Wrap(err, "invalid sync_batch params")
	}
	results, err := d.coordinator.SyncBatch(ctx, &p.SyncPlan, p.Records)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []types.RecordResult{}
	}
	for _, result := range results {
		status := "success"
		if !result.Success {
			status = "failed"
		}
		metrics.SyncBatchRecords(p.SyncPlan.Object.ObjectAPIName, string(p.SyncPlan.Operation), status).Inc()
	}
	return SyncBatchResult{RecordResults: results}, nil
}

// errorCode maps handler failures to JSON-RPC error codes.
func errorCode(err error) int {
	switch {
	case errorx.IsOfType(err, reversynclib.ErrProtocol):
		return InvalidParamsCode
	case errorx.IsOfType(err, reversynclib.ErrConfiguration):
		return ConfigurationErrorCode
	default:
		return InternalErrorCode
	}
}
