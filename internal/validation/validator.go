// Package validation holds the schema checks shared by the planner, the
// anonymizer and the sinks. Every failure is a SchemaError.
package validation

import (
	"fmt"

	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
)

// Validator checks one precondition.
type Validator interface {
	Validate() error
}

// ColumnValidator checks that columns exist in a schema.
type ColumnValidator struct {
	schema  series.Schema
	columns []string
	op      string
}

// NewColumnValidator creates a validator for the columns op reads.
func NewColumnValidator(schema series.Schema, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{schema: schema, columns: columns, op: op}
}

// Validate reports the first missing column.
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if _, ok := v.schema.Lookup(column); !ok {
			return errors.NewColumnNotFoundError(v.op, column)
		}
	}
	return nil
}

// UniqueValidator checks that names contain no duplicates and avoid the
// reserved names.
type UniqueValidator struct {
	names    []string
	reserved []string
	op       string
}

// NewUniqueValidator creates a validator for output names.
func NewUniqueValidator(op string, names []string, reserved ...string) *UniqueValidator {
	return &UniqueValidator{names: names, reserved: reserved, op: op}
}

// Validate reports the first repeated name.
func (v *UniqueValidator) Validate() error {
	seen := make(map[string]bool, len(v.names)+len(v.reserved))
	for _, name := range v.reserved {
		seen[name] = true
	}
	for _, name := range v.names {
		if seen[name] {
			return errors.NewDuplicateColumnError(v.op, name)
		}
		seen[name] = true
	}
	return nil
}

// CountValidator checks a count against a lower bound.
type CountValidator struct {
	count int
	min   int
	what  string
	op    string
}

// NewNonNegativeValidator rejects negative values.
func NewNonNegativeValidator(value int, op, what string) *CountValidator {
	return &CountValidator{count: value, min: 0, what: what, op: op}
}

// NewNotEmptyValidator requires at least one item.
func NewNotEmptyValidator(count int, op, what string) *CountValidator {
	return &CountValidator{count: count, min: 1, what: what, op: op}
}

func (v *CountValidator) Validate() error {
	if v.count >= v.min {
		return nil
	}
	if v.min == 0 {
		return errors.NewInvalidInputError(v.op, fmt.Sprintf("%s must be non-negative, got %d", v.what, v.count))
	}
	return errors.NewInvalidInputError(v.op, fmt.Sprintf("at least one %s is required", v.what))
}

// CompoundValidator runs validators in order and stops at the first error.
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator from others.
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{validators: validators}
}

func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateColumns checks that every column exists in schema.
func ValidateColumns(schema series.Schema, op string, columns ...string) error {
	return NewColumnValidator(schema, op, columns...).Validate()
}

// ValidateUnique checks that names are distinct and avoid reserved.
func ValidateUnique(op string, names []string, reserved ...string) error {
	return NewUniqueValidator(op, names, reserved...).Validate()
}

// ValidateNonNegative rejects a negative value.
func ValidateNonNegative(value int, op, what string) error {
	return NewNonNegativeValidator(value, op, what).Validate()
}

// ValidateNotEmpty requires count to be at least one.
func ValidateNotEmpty(count int, op, what string) error {
	return NewNotEmptyValidator(count, op, what).Validate()
}

// Validate runs validators in order.
func Validate(validators ...Validator) error {
	return NewCompoundValidator(validators...).Validate()
}
