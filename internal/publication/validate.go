package publication

import (
	"fmt"
	"strings"

	"github.com/wipacrepo/pubs/internal/taxonomy"
)

// ValidationError rejects a record. Field names the offending field.
type ValidationError struct {
	Field  string
	Value  string // offending value, if a single element is to blame
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Validator checks records against the taxonomy and structural rules.
type Validator struct {
	reg *taxonomy.Registry
}

// NewValidator returns a validator bound to reg.
func NewValidator(reg *taxonomy.Registry) *Validator {
	return &Validator{reg: reg}
}

// Validate checks every field of p in FieldOrder and returns the first
// failure. Nothing is modified.
func (v *Validator) Validate(p *Publication) error {
	for _, field := range FieldOrder {
		if err := v.CheckField(p, field); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePatch checks only the fields supplied in patch.
func (v *Validator) ValidatePatch(patch Patch) error {
	var p Publication
	patch.Apply(&p)
	for _, field := range patch.Fields() {
		if err := v.CheckField(&p, field); err != nil {
			return err
		}
	}
	return nil
}

// CheckField validates a single field of p.
func (v *Validator) CheckField(p *Publication, field string) error {
	switch field {
	case FieldTitle:
		if strings.TrimSpace(p.Title) == "" {
			return Invalid(FieldTitle, "must be a non-empty string")
		}
	case FieldAuthors:
		return nonEmptyElements(FieldAuthors, p.Authors)
	case FieldType:
		if !v.reg.Types().Has(p.Type) {
			return &ValidationError{Field: FieldType, Value: p.Type, Reason: "not a known publication type"}
		}
	case FieldDate:
		if _, err := ParseDate(p.Date); err != nil {
			return &ValidationError{Field: FieldDate, Value: p.Date, Reason: "not an ISO date or date-time"}
		}
	case FieldDownloads:
		return nonEmptyElements(FieldDownloads, p.Downloads)
	case FieldProjects:
		return members(FieldProjects, p.Projects, v.reg.Projects(), "not a known project")
	case FieldSites:
		return members(FieldSites, p.Sites, v.reg.Sites(), "not a known site")
	case FieldCitation, FieldAbstract:
		// Free text.
	default:
		return Invalid(field, "unknown field")
	}
	return nil
}

func nonEmptyElements(field string, values []string) error {
	for i, s := range values {
		if strings.TrimSpace(s) == "" {
			return Invalid(field, fmt.Sprintf("element %d is empty", i+1))
		}
	}
	return nil
}

func members(field string, values []string, enum taxonomy.Enum, reason string) error {
	for _, s := range values {
		if !enum.Has(s) {
			return &ValidationError{Field: field, Value: s, Reason: reason}
		}
	}
	return nil
}
