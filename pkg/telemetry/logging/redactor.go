package logging

import (
	"log/slog"
	"strings"

	"mercator-hq/docguard/pkg/detect"
)

// Redactor generalizes PII in log values.
type Redactor struct {
	registry *detect.Registry
}

// NewRedactor creates a redactor over registry, or the default registry
// when nil.
func NewRedactor(registry *detect.Registry) *Redactor {
	if registry == nil {
		registry = detect.DefaultRegistry()
	}
	return &Redactor{registry: registry}
}

// RedactString replaces detected PII with its generalization token.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	return r.registry.Generalize(value)
}

// RedactAttr redacts an attribute. Values under sensitive keys are replaced
// entirely; identifiers (keys ending in _id) pass through.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}

	case slog.KindString:
		switch {
		case isSensitiveKey(a.Key):
			return slog.String(a.Key, detect.RefusePlaceholder)
		case isIdentifierKey(a.Key):
			return a
		default:
			return slog.String(a.Key, r.RedactString(a.Value.String()))
		}

	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}

	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range []string{"raw_value", "password", "secret", "token", "ssn", "credit_card", "account_number"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func isIdentifierKey(key string) bool {
	return key == "id" || strings.HasSuffix(key, "_id")
}
