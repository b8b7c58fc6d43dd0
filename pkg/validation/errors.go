package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Violation describes a single constraint broken by one input field.
type Violation struct {
	Field   string   `json:"field"`
	Message string   `json:"message"`
	Value   *float64 `json:"value,omitempty"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Error collects every violation found while checking an input. It is never
// returned empty.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Collector accumulates violations for a single input.
type Collector struct {
	violations []Violation
}

// Add records a violation together with the offending value.
func (c *Collector) Add(field, message string, value float64) {
	c.violations = append(c.violations, Violation{Field: field, Message: message, Value: &value})
}

// Invalid records a violation for a field that has no numeric value.
func (c *Collector) Invalid(field, message string) {
	c.violations = append(c.violations, Violation{Field: field, Message: message})
}

// Merge appends the violations carried by err and reports whether err was an
// *Error. Any other error is left to the caller.
func (c *Collector) Merge(err error) bool {
	var verr *Error
	if !errors.As(err, &verr) {
		return false
	}
	c.violations = append(c.violations, verr.Violations...)
	return true
}

// Required records a violation when a mandatory field is absent.
func (c *Collector) Required(field string, present bool) {
	if !present {
		c.violations = append(c.violations, Violation{Field: field, Message: "is required"})
	}
}

// Range records a violation when value lies outside [min, max]. NaN and the
// infinities are always out of range.
func (c *Collector) Range(field string, value, min, max float64) {
	if math.IsNaN(value) || value < min || value > max {
		msg := fmt.Sprintf("must be between %g and %g", min, max)
		if math.IsNaN(value) || math.IsInf(value, 0) {
			c.Invalid(field, msg)
			return
		}
		c.Add(field, msg, value)
	}
}

// Err returns nil when nothing was recorded, otherwise an *Error.
func (c *Collector) Err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &Error{Violations: append([]Violation(nil), c.violations...)}
}
