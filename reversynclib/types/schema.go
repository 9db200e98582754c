package types

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
)

// Object is a destination-side entity type (analogous to a table) exposed
// for sync mapping. Identity is ObjectAPIName, Label is display-only.
type Object struct {
	ObjectAPIName string `json:"object_api_name" mapstructure:"object_api_name"`
	Label         string `json:"label" mapstructure:"label"`
}

// FieldType is a type representation of destination field data types
type FieldType string

const (
	BooleanType  FieldType = "boolean"
	DecimalType  FieldType = "decimal"
	FloatType    FieldType = "float"
	IntegerType  FieldType = "integer"
	DateType     FieldType = "date"
	DateTimeType FieldType = "date_time"
	StringType   FieldType = "string"
)

var fieldTypes = map[FieldType]bool{
	BooleanType:  true,
	DecimalType:  true,
	FloatType:    true,
	IntegerType:  true,
	DateType:     true,
	DateTimeType: true,
	StringType:   true,
}

func (ft FieldType) Valid() bool {
	return fieldTypes[ft]
}

// Field is an attribute of an Object (analogous to a column), with type and
// write-capability metadata.
type Field struct {
	FieldAPIName string    `json:"field_api_name" mapstructure:"field_api_name"`
	Label        string    `json:"label" mapstructure:"label"`
	Identifier   bool      `json:"identifier" mapstructure:"identifier"`
	Required     bool      `json:"required" mapstructure:"required"`
	Createable   bool      `json:"createable" mapstructure:"createable"`
	Updateable   bool      `json:"updateable" mapstructure:"updateable"`
	Type         FieldType `json:"type" mapstructure:"type"`
	Array        bool      `json:"array" mapstructure:"array"`
}

// Operation is the write semantics requested for a sync.
type Operation string

const (
	OperationUpsert Operation = "upsert"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
)

func (op Operation) Valid() bool {
	return op == OperationUpsert || op == OperationInsert || op == OperationUpdate
}

var apiNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func (o Object) Validate() error {
	if !apiNamePattern.MatchString(o.ObjectAPIName) {
		return fmt.Errorf("invalid object_api_name: %q", o.ObjectAPIName)
	}
	return nil
}

func (f Field) Validate() error {
	var result error
	if !apiNamePattern.MatchString(f.FieldAPIName) {
		result = multierror.Append(result, fmt.Errorf("invalid field_api_name: %q", f.FieldAPIName))
	}
	if !f.Type.Valid() {
		result = multierror.Append(result, fmt.Errorf("field %s: unknown type: %q", f.FieldAPIName, f.Type))
	}
	if f.Identifier {
		if f.Type != StringType && f.Type != IntegerType {
			result = multierror.Append(result, fmt.Errorf("field %s: identifier fields must be of type string or integer, got %q", f.FieldAPIName, f.Type))
		}
		if f.Array {
			result = multierror.Append(result, fmt.Errorf("field %s: identifier fields cannot be arrays", f.FieldAPIName))
		}
	}
	return result
}

// ValidateFields checks every field definition and requires at least one
// identifier-eligible field. Violations are configuration errors and are
// reported, not corrected.
func ValidateFields(fields []Field) error {
	var result error
	identifiers := 0
	seen := map[string]bool{}
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if seen[f.FieldAPIName] {
			result = multierror.Append(result, fmt.Errorf("duplicate field_api_name: %q", f.FieldAPIName))
		}
		seen[f.FieldAPIName] = true
		if f.Identifier {
			identifiers++
		}
	}
	if result == nil && identifiers == 0 {
		result = fmt.Errorf("object is not sync-eligible: field set contains no identifier field")
	}
	return result
}

// ValidateOperations requires a non-empty set of known operations with no duplicates.
func ValidateOperations(operations []Operation) error {
	if len(operations) == 0 {
		return fmt.Errorf("destination advertises no supported operations")
	}
	seen := map[Operation]bool{}
	for _, op := range operations {
		if !op.Valid() {
			return fmt.Errorf("unknown operation: %q", op)
		}
		if seen[op] {
			return fmt.Errorf("duplicate operation: %q", op)
		}
		seen[op] = true
	}
	return nil
}
