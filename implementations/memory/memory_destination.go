// Package memory implements an in-memory destination. It backs local
// development and tests of the runtime: objects and fields are seeded from
// config, records live in a mutex-guarded store keyed by identifier value,
// and failures can be injected per identifier to exercise partial-failure
// reporting.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/reversync/reversync/base/appbase"
	"github.com/reversync/reversync/base/utils"
	"github.com/reversync/reversync/reversynclib"
	"github.com/reversync/reversync/reversynclib/types"
)

const DestinationType = "memory"

func init() {
	reversynclib.RegisterDestination(DestinationType, NewMemoryDestination)
}

type ObjectDefinition struct {
	ObjectAPIName string            `mapstructure:"object_api_name"`
	Label         string            `mapstructure:"label"`
	Fields        []types.Field     `mapstructure:"fields"`
	Operations    []types.Operation `mapstructure:"operations"`
}

type MemoryConfig struct {
	Objects []ObjectDefinition `mapstructure:"objects"`
	// Speed optionally overrides the governor defaults, clamped by the governor.
	Speed *types.SpeedLimits `mapstructure:"speed"`
	// FailIdentifiers maps identifier values to error messages. Persisting a
	// record with a listed identifier fails with the mapped message.
	FailIdentifiers map[string]string `mapstructure:"fail_identifiers"`
}

type MemoryDestination struct {
	appbase.Service
	config *MemoryConfig

	mu sync.RWMutex
	// records by object api name, then by identifier key
	store map[string]map[string]types.Record
}

func NewMemoryDestination(config reversynclib.Config) (reversynclib.Destination, error) {
	memoryConfig := &MemoryConfig{}
	if err := mapstructure.Decode(config.Credentials, memoryConfig); err != nil {
		return nil, fmt.Errorf("failed to parse memory destination config: %w", err)
	}
	if len(memoryConfig.Objects) == 0 {
		return nil, fmt.Errorf("memory destination config must define at least one object")
	}
	for _, object := range memoryConfig.Objects {
		if err := types.ValidateFields(object.Fields); err != nil {
			return nil, fmt.Errorf("object %s: %w", object.ObjectAPIName, err)
		}
		if err := types.ValidateOperations(object.Operations); err != nil {
			return nil, fmt.Errorf("object %s: %w", object.ObjectAPIName, err)
		}
	}
	return &MemoryDestination{
		Service: appbase.NewServiceBase(fmt.Sprintf("memory-destination-%s", config.Id)),
		config:  memoryConfig,
		store:   make(map[string]map[string]types.Record),
	}, nil
}

func (m *MemoryDestination) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = make(map[string]map[string]types.Record)
	return nil
}

func (m *MemoryDestination) TestConnection(_ context.Context) error {
	return nil
}

func (m *MemoryDestination) ListObjects(_ context.Context) ([]types.Object, error) {
	return utils.ArrayMap(m.config.Objects, func(definition ObjectDefinition) types.Object {
		return types.Object{ObjectAPIName: definition.ObjectAPIName, Label: definition.Label}
	}), nil
}

func (m *MemoryDestination) ListFields(_ context.Context, object types.Object) ([]types.Field, error) {
	definition, err := m.objectDefinition(object.ObjectAPIName)
	if err != nil {
		return nil, err
	}
	return definition.Fields, nil
}

func (m *MemoryDestination) SupportedOperations(_ context.Context, object types.Object) ([]types.Operation, error) {
	definition, err := m.objectDefinition(object.ObjectAPIName)
	if err != nil {
		return nil, err
	}
	return definition.Operations, nil
}

func (m *MemoryDestination) SpeedHint(_ *types.SyncPlan) *types.SpeedLimits {
	return m.config.Speed
}

func (m *MemoryDestination) Exists(_ context.Context, plan *types.SyncPlan, identifier any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, ok := m.store[plan.Object.ObjectAPIName]
	if !ok {
		return false, nil
	}
	_, ok = records[types.IdentifierKey(identifier)]
	return ok, nil
}

func (m *MemoryDestination) Persist(_ context.Context, plan *types.SyncPlan, record types.Record) error {
	identifier, err := record.IdentifierValue(plan)
	if err != nil {
		return err
	}
	key := types.IdentifierKey(identifier)
	if message, ok := m.config.FailIdentifiers[key]; ok {
		return fmt.Errorf("%s", message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.store[plan.Object.ObjectAPIName]
	if !ok {
		records = make(map[string]types.Record)
		m.store[plan.Object.ObjectAPIName] = records
	}
	records[key] = record
	return nil
}

// Get returns the stored record for an identifier value. Test helper.
func (m *MemoryDestination) Get(objectAPIName string, identifier any) (types.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, ok := m.store[objectAPIName]
	if !ok {
		return nil, false
	}
	record, ok := records[types.IdentifierKey(identifier)]
	return record, ok
}

// Seed stores a record directly, bypassing operation semantics. Test helper.
func (m *MemoryDestination) Seed(objectAPIName string, identifier any, record types.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.store[objectAPIName]
	if !ok {
		records = make(map[string]types.Record)
		m.store[objectAPIName] = records
	}
	records[types.IdentifierKey(identifier)] = record
}

func (m *MemoryDestination) objectDefinition(objectAPIName string) (*ObjectDefinition, error) {
	for i := range m.config.Objects {
		if m.config.Objects[i].ObjectAPIName == objectAPIName {
			return &m.config.Objects[i], nil
		}
	}
	return nil, fmt.Errorf("unknown object: %s", objectAPIName)
}
