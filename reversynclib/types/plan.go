package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SchemaEntry maps one warehouse column to one destination field.
type SchemaEntry struct {
	ActiveIdentifier bool  `json:"active_identifier" mapstructure:"active_identifier"`
	Field            Field `json:"field" mapstructure:"field"`
}

// SyncPlan is the resolved mapping of warehouse columns to destination fields
// plus the chosen operation, for one sync. Constructed by the orchestrator,
// passed by value on every execution-phase call, never mutated or persisted here.
type SyncPlan struct {
	Object    Object                 `json:"object" mapstructure:"object"`
	Operation Operation              `json:"operation" mapstructure:"operation"`
	Schema    map[string]SchemaEntry `json:"schema" mapstructure:"schema"`
}

// ActiveIdentifier returns the local column name and destination field of the
// plan's cross-system join key. Exactly one schema entry must be marked active.
func (p *SyncPlan) ActiveIdentifier() (string, Field, error) {
	name := ""
	var field Field
	count := 0
	for localName, entry := range p.Schema {
		if entry.ActiveIdentifier {
			name = localName
			field = entry.Field
			count++
		}
	}
	if count != 1 {
		return "", Field{}, fmt.Errorf("sync plan must have exactly one active identifier, got %d", count)
	}
	return name, field, nil
}

func (p *SyncPlan) Validate() error {
	if err := p.Object.Validate(); err != nil {
		return err
	}
	if !p.Operation.Valid() {
		return fmt.Errorf("unknown operation: %q", p.Operation)
	}
	if len(p.Schema) == 0 {
		return fmt.Errorf("sync plan has an empty schema")
	}
	_, field, err := p.ActiveIdentifier()
	if err != nil {
		return err
	}
	if err = field.Validate(); err != nil {
		return fmt.Errorf("active identifier: %w", err)
	}
	if !field.Identifier {
		return fmt.Errorf("active identifier maps to field %s which is not an identifier field", field.FieldAPIName)
	}
	return nil
}

// Record is a mapping of local column name to value, one entry per mapped
// field, always including the identifier column.
type Record map[string]any

// IdentifierValue extracts the record's value of the plan's active identifier column.
func (r Record) IdentifierValue(plan *SyncPlan) (any, error) {
	localName, _, err := plan.ActiveIdentifier()
	if err != nil {
		return nil, err
	}
	value, ok := r[localName]
	if !ok || value == nil {
		return nil, fmt.Errorf("record is missing a value for identifier column %q", localName)
	}
	return value, nil
}

// IdentifierKey normalizes an identifier value for matching record results to
// records. Identifier fields are string or integer; JSON decoding may deliver
// integers as float64 or json.Number, all of which must collapse to the same key.
func IdentifierKey(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// RecordResult is the per-record outcome of a sync_batch call, matched to its
// record by identifier value, not by position.
type RecordResult struct {
	Identifier   any    `json:"identifier"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SpeedLimits is the governor triad: per-call batch size, concurrent in-flight
// batches and an aggregate records/second ceiling across all parallel batches.
type SpeedLimits struct {
	MaximumBatchSize        int     `json:"maximum_batch_size" mapstructure:"maximum_batch_size"`
	MaximumParallelBatches  int     `json:"maximum_parallel_batches" mapstructure:"maximum_parallel_batches"`
	MaximumRecordsPerSecond float64 `json:"maximum_records_per_second" mapstructure:"maximum_records_per_second"`
}

func (s SpeedLimits) Validate() error {
	if s.MaximumBatchSize <= 0 {
		return fmt.Errorf("maximum_batch_size must be positive, got %d", s.MaximumBatchSize)
	}
	if s.MaximumParallelBatches <= 0 {
		return fmt.Errorf("maximum_parallel_batches must be positive, got %d", s.MaximumParallelBatches)
	}
	if s.MaximumRecordsPerSecond <= 0 {
		return fmt.Errorf("maximum_records_per_second must be positive, got %v", s.MaximumRecordsPerSecond)
	}
	return nil
}
