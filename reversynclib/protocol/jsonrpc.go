// Package protocol implements the JSON-RPC 2.0 subset the orchestrator speaks:
// single object requests over HTTPS POST, object-only params and result, no
// notifications and no batching.
package protocol

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const Version = "2.0"

// JSON-RPC error codes. The standard set plus a server-range code for
// connector configuration errors.
const (
	ParseErrorCode         = -32700
	InvalidRequestCode     = -32600
	MethodNotFoundCode     = -32601
	InvalidParamsCode      = -32602
	InternalErrorCode      = -32603
	ConfigurationErrorCode = -32000
)

// Request is a decoded JSON-RPC request. ID holds the raw JSON of the id
// member so it can be echoed byte-for-byte: the runtime never interprets or
// generates ids.
type Request struct {
	Method string
	ID     jsoniter.RawMessage
	Params jsoniter.RawMessage
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response is a JSON-RPC response envelope. Exactly one of Result and Err is set.
type Response struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id"`
	Result  jsoniter.RawMessage `json:"result,omitempty"`
	Err     *Error              `json:"error,omitempty"`
}

type rawRequest struct {
	JSONRPC *string             `json:"jsonrpc"`
	Method  *string             `json:"method"`
	ID      jsoniter.RawMessage `json:"id"`
	Params  jsoniter.RawMessage `json:"params"`
}

// DecodeRequest parses an HTTP POST body into a Request, rejecting everything
// outside the supported subset: batches, notifications, non-string ids and
// non-object params.
func DecodeRequest(body []byte) (*Request, *Error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &Error{Code: ParseErrorCode, Message: "empty request body"}
	}
	if trimmed[0] == '[' {
		return nil, &Error{Code: InvalidRequestCode, Message: "batch requests are not supported"}
	}
	if trimmed[0] != '{' {
		return nil, &Error{Code: ParseErrorCode, Message: "request body is not a JSON object"}
	}
	var raw rawRequest
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &Error{Code: ParseErrorCode, Message: fmt.Sprintf("invalid JSON: %s", err)}
	}
	if raw.JSONRPC == nil || *raw.JSONRPC != Version {
		return nil, &Error{Code: InvalidRequestCode, Message: `jsonrpc member must be "2.0"`}
	}
	if raw.Method == nil || *raw.Method == "" {
		return nil, &Error{Code: InvalidRequestCode, Message: "method member is required"}
	}
	if !isJSONString(raw.ID) {
		// a missing id would make this a notification, which has no response
		// to carry results in
		return nil, &Error{Code: InvalidRequestCode, Message: "id member must be a string; notifications are not supported"}
	}
	if !isJSONObject(raw.Params) {
		return nil, &Error{Code: InvalidRequestCode, Message: "params member must be an object"}
	}
	return &Request{Method: *raw.Method, ID: raw.ID, Params: raw.Params}, nil
}

// EncodeRequest builds a request body. The params value must marshal to a
// JSON object.
func EncodeRequest(method string, id string, params any) ([]byte, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("error marshalling params: %w", err)
	}
	if !isJSONObject(payload) {
		return nil, fmt.Errorf("params must be a JSON object, got: %s", payload)
	}
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]jsoniter.RawMessage{
		"jsonrpc": jsoniter.RawMessage(`"` + Version + `"`),
		"method":  mustMarshal(method),
		"id":      rawID,
		"params":  payload,
	})
}

func mustMarshal(value any) jsoniter.RawMessage {
	payload, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	return payload
}

// OkResponse encodes a handler result. The result value must marshal to a
// JSON object.
func OkResponse(id jsoniter.RawMessage, result any) (*Response, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("error marshalling result: %w", err)
	}
	if !isJSONObject(payload) {
		return nil, fmt.Errorf("result must be a JSON object, got: %s", payload)
	}
	return &Response{JSONRPC: Version, ID: id, Result: payload}, nil
}

// ErrorResponse encodes a handler failure. With a nil id (request never got
// decoded) the id member is JSON null.
func ErrorResponse(id jsoniter.RawMessage, code int, message string) *Response {
	if id == nil {
		id = jsoniter.RawMessage("null")
	}
	return &Response{JSONRPC: Version, ID: id, Err: &Error{Code: code, Message: message}}
}

// EncodeResponse serializes a response envelope.
func EncodeResponse(response *Response) ([]byte, error) {
	return json.Marshal(response)
}

// DecodeResponse parses a response envelope, enforcing the same subset rules
// as DecodeRequest: string id (null is allowed on error responses whose
// request never got decoded), object result.
func DecodeResponse(body []byte) (*Response, error) {
	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if response.JSONRPC != Version {
		return nil, fmt.Errorf(`jsonrpc member must be "2.0"`)
	}
	if !isJSONString(response.ID) && !(response.Err != nil && isJSONNull(response.ID)) {
		return nil, fmt.Errorf("id member must be a string")
	}
	if (response.Result == nil) == (response.Err == nil) {
		return nil, fmt.Errorf("exactly one of result and error must be set")
	}
	if response.Result != nil && !isJSONObject(response.Result) {
		return nil, fmt.Errorf("result member must be an object")
	}
	return &response, nil
}

func isJSONObject(raw jsoniter.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isJSONString(raw jsoniter.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

func isJSONNull(raw jsoniter.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
