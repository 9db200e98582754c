package reversynclib

import (
	"context"
	"fmt"
	"io"

	"github.com/reversync/reversync/reversynclib/types"
)

type InitFunction func(Config) (Destination, error)

// DestinationRegistry registry of init functions for destination implementations.
// Used by CreateDestination factory method.
var DestinationRegistry = make(map[string]InitFunction)

// Config of a destination instance.
type Config struct {
	//id of destination instance for logging and metrics
	Id string `mapstructure:"id" json:"id"`
	//destinationType - type of destination implementation
	DestinationType string `mapstructure:"type" json:"type"`
	//credentials and implementation specific settings - may be a struct type
	//supported by the implementation or map[string]any
	Credentials any `mapstructure:"credentials" json:"credentials"`
}

// Destination is the destination-access capability the runtime is built
// around: schema metadata queries plus record-level existence checks and
// writes. Implementations must be safe for concurrent calls - the runtime
// holds no locks on their behalf.
//
// Schema queries are referentially transparent with respect to destination
// schema state: repeated calls may be issued concurrently and must be safe to
// answer independently and identically. The runtime caches nothing.
type Destination interface {
	io.Closer
	// TestConnection verifies that the destination is reachable with the
	// configured credentials.
	TestConnection(ctx context.Context) error
	// ListObjects returns destination objects available for sync mapping.
	// A usable destination exposes at least one.
	ListObjects(ctx context.Context) ([]types.Object, error)
	// ListFields returns the field set of an object.
	ListFields(ctx context.Context, object types.Object) ([]types.Field, error)
	// SupportedOperations advertises only operations the destination can
	// enforce correctly for the object.
	SupportedOperations(ctx context.Context, object types.Object) ([]types.Operation, error)
	// Exists reports whether a record with the given identifier value is
	// already present at the destination.
	Exists(ctx context.Context, plan *types.SyncPlan, identifier any) (bool, error)
	// Persist writes one record. A nil return is a confirmation that the
	// record is durably persisted - implementations must not return nil on
	// ambiguous outcomes.
	Persist(ctx context.Context, plan *types.SyncPlan, record types.Record) error
}

// SpeedHinter is optionally implemented by destinations that know their API
// shape well enough to suggest sync speed limits. Hints are validated and
// clamped by the governor, never trusted raw.
type SpeedHinter interface {
	SpeedHint(plan *types.SyncPlan) *types.SpeedLimits
}

// RegisterDestination registers function to create new destination instance
func RegisterDestination(destinationType string, initFunc InitFunction) {
	DestinationRegistry[destinationType] = initFunc
}

func CreateDestination(config Config) (Destination, error) {
	initFunc, ok := DestinationRegistry[config.DestinationType]
	if !ok {
		return nil, fmt.Errorf("unknown destination implementation type: %s", config.DestinationType)
	}
	return initFunc(config)
}

// DummyDestination fails every call with a fixed error.
type DummyDestination struct {
	Error error
}

func (d *DummyDestination) Close() error {
	return nil
}

func (d *DummyDestination) TestConnection(_ context.Context) error {
	return d.Error
}

func (d *DummyDestination) ListObjects(_ context.Context) ([]types.Object, error) {
	return nil, d.Error
}

func (d *DummyDestination) ListFields(_ context.Context, _ types.Object) ([]types.Field, error) {
	return nil, d.Error
}

func (d *DummyDestination) SupportedOperations(_ context.Context, _ types.Object) ([]types.Operation, error) {
	return nil, d.Error
}

func (d *DummyDestination) Exists(_ context.Context, _ *types.SyncPlan, _ any) (bool, error) {
	return false, d.Error
}

func (d *DummyDestination) Persist(_ context.Context, _ *types.SyncPlan, _ types.Record) error {
	return d.Error
}
