package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedType is returned for request types without a schema. It marks
// an integration bug rather than a runtime condition.
var ErrUnsupportedType = errors.New("unsupported request type")

// ValidationError lists everything wrong with a payload.
type ValidationError struct {
	Missing []string
	Invalid map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "Missing required fields: " + strings.Join(e.Missing, ", ")
	}
	keys := make([]string, 0, len(e.Invalid))
	for k := range e.Invalid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Invalid[k], ", ")))
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

// Fields flattens missing and invalid fields into one field -> messages map.
func (e *ValidationError) Fields() map[string][]string {
	out := make(map[string][]string, len(e.Missing)+len(e.Invalid))
	for _, f := range e.Missing {
		out[f] = append(out[f], "is required")
	}
	for f, msgs := range e.Invalid {
		out[f] = append(out[f], msgs...)
	}
	return out
}

func (e *ValidationError) addInvalid(field, msg string) {
	if e.Invalid == nil {
		e.Invalid = make(map[string][]string)
	}
	e.Invalid[field] = append(e.Invalid[field], msg)
}

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}
