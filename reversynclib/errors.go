package reversynclib

import "github.com/joomcode/errorx"

// Error taxonomy of the connector runtime. The dispatcher maps these types to
// JSON-RPC error codes at the protocol boundary.
var (
	Errors = errorx.NewNamespace("connector")

	// ErrProtocol - malformed request, unknown method, schema-invalid params.
	ErrProtocol = Errors.NewType("protocol")
	// ErrConfiguration - invalid Object/Field/Operation/plan definitions or an
	// oversized batch. Never silently corrected.
	ErrConfiguration = Errors.NewType("configuration")
	// ErrConnectivity - destination connectivity failures. test_connection
	// reports these inside result, not as a protocol error.
	ErrConnectivity = Errors.NewType("connectivity")
	// ErrDestination - destination access failures during schema queries or
	// batch execution.
	ErrDestination = Errors.NewType("destination")
)
