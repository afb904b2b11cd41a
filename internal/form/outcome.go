package form

import (
	"fmt"
	"strings"
)

// Severity of a reported outcome.
const (
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// MissingField is a key the filler could not apply. Control and Attempted are
// set when a grouped control or select had no member matching the value.
type MissingField struct {
	Key       string `json:"key"`
	Control   string `json:"control,omitempty"`
	Attempted string `json:"attempted,omitempty"`
}

func (m MissingField) String() string {
	if m.Control == "" {
		return m.Key
	}
	return fmt.Sprintf("%s (%s: \"%s\")", m.Key, m.Control, m.Attempted)
}

// FieldError is a write failure on a resolved control.
type FieldError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Key + ": " + e.Message
}

// FillOutcome reports one reconciliation pass.
type FillOutcome struct {
	FilledCount int            `json:"filled_count"`
	NotFound    []MissingField `json:"not_found"`
	Errors      []FieldError   `json:"errors"`
	Success     bool           `json:"success"`
}

// Message renders the outcome for an operator.
func (o *FillOutcome) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d field(s) filled.", o.FilledCount)
	if len(o.NotFound) > 0 {
		names := make([]string, len(o.NotFound))
		for i, m := range o.NotFound {
			names[i] = m.String()
		}
		fmt.Fprintf(&b, " Missing: %s.", strings.Join(names, ", "))
	}
	if len(o.Errors) > 0 {
		msgs := make([]string, len(o.Errors))
		for i, e := range o.Errors {
			msgs[i] = e.String()
		}
		fmt.Fprintf(&b, " Errors: %s.", strings.Join(msgs, "; "))
	}
	return b.String()
}

// Severity classifies the outcome. Some fields filled with others merely
// absent is a warning; nothing filled with anything missing is an error.
func (o *FillOutcome) Severity() string {
	switch {
	case o.Success:
		return SeveritySuccess
	case o.FilledCount > 0 && len(o.Errors) == 0:
		return SeverityWarning
	default:
		return SeverityError
	}
}
