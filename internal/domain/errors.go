package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// FieldError describes a single offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects one entry per offending field. It is returned as an
// error by every validation routine in the repo.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e.sorted() {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Map returns the errors keyed by field, suitable for direct display.
func (e FieldErrors) Map() map[string]string {
	m := make(map[string]string, len(e))
	for _, fe := range e {
		m[fe.Field] = fe.Message
	}
	return m
}

func (e FieldErrors) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}

// Has reports whether field has an entry.
func (e FieldErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns nil when there are no entries so callers can return it as error directly.
func (e FieldErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e.sorted()
}

func (e FieldErrors) sorted() FieldErrors {
	out := append(FieldErrors(nil), e...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func (e FieldErrors) prefixed(prefix string) FieldErrors {
	out := make(FieldErrors, 0, len(e))
	for _, fe := range e {
		out = append(out, FieldError{Field: prefix + fe.Field, Message: fe.Message})
	}
	return out
}

// FieldWarning flags a stored value that is accepted but has no effect.
type FieldWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
