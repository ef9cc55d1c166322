package cypher

import (
	"errors"
	"fmt"
)

// Rejection kinds. Use errors.Is against a returned *Rejection.
var (
	ErrUnparseable         = errors.New("unparseable path")
	ErrConflictingLabels   = errors.New("conflicting labels")
	ErrInvalidRelationship = errors.New("invalid relationship")
	ErrSchemaMismatch      = errors.New("schema mismatch")
)

// Rejection explains why a query could not be corrected.
type Rejection struct {
	Kind    error
	Element string
	Detail  string
}

func (r *Rejection) Error() string {
	msg := r.Kind.Error()
	if r.Element != "" {
		msg += fmt.Sprintf(" %q", r.Element)
	}
	if r.Detail != "" {
		msg += ": " + r.Detail
	}
	return msg
}

func (r *Rejection) Unwrap() error {
	return r.Kind
}

// KindName returns a stable identifier for the rejection kind, suitable for
// metrics labels and API responses.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnparseable):
		return "unparseable_path"
	case errors.Is(err, ErrConflictingLabels):
		return "conflicting_labels"
	case errors.Is(err, ErrInvalidRelationship):
		return "invalid_relationship"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	default:
		return "error"
	}
}

func reject(kind error, element, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Element: element, Detail: fmt.Sprintf(format, args...)}
}
