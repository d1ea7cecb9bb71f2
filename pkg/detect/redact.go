package detect

import (
	"fmt"
	"strings"
	"unicode"

	"mercator-hq/docguard/pkg/model"
)

// RefusePlaceholder replaces values redacted in refuse mode.
const RefusePlaceholder = "[REDACTED]"

// Redact returns the replacement text for entity under mode. Mode must be
// one of the defined modes; callers pass the mode assigned to the entity.
func (r *Registry) Redact(entity model.PIIEntity, mode model.RedactionMode) (string, error) {
	switch mode {
	case model.ModeMask:
		prefix, suffix := 0, 0
		if rule, ok := r.Rule(entity.Type); ok {
			prefix, suffix = rule.MaskKeepPrefix, rule.MaskKeepSuffix
		}
		return Mask(entity.RawValue, prefix, suffix), nil
	case model.ModeGeneralize:
		return r.token(entity.Type), nil
	case model.ModeRefuse:
		return RefusePlaceholder, nil
	default:
		return "", model.NewValidationError("redaction_mode", fmt.Sprintf("unknown redaction mode %q for entity %s", mode, entity.EntityID))
	}
}

// Mask replaces letters and digits with '*' except the first keepPrefix and
// last keepSuffix of them. Separators are preserved. When the kept parts
// would cover the whole value, everything is masked.
func Mask(value string, keepPrefix, keepSuffix int) string {
	total := 0
	for _, c := range value {
		if isAlnum(c) {
			total++
		}
	}
	if keepPrefix+keepSuffix >= total {
		keepPrefix, keepSuffix = 0, 0
	}

	var b strings.Builder
	b.Grow(len(value))
	idx := 0
	for _, c := range value {
		if !isAlnum(c) {
			b.WriteRune(c)
			continue
		}
		if idx < keepPrefix || idx >= total-keepSuffix {
			b.WriteRune(c)
		} else {
			b.WriteByte('*')
		}
		idx++
	}
	return b.String()
}

func (r *Registry) token(entityType string) string {
	if rule, ok := r.Rule(entityType); ok && rule.Token != "" {
		return rule.Token
	}
	return "[" + strings.ToUpper(entityType) + "]"
}

func isAlnum(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}
