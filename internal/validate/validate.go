// Package validate holds the field rules applied before every write.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zym9863/Dream-s-Exit/internal/model"
)

// NonEmpty rejects values that are empty once surrounding whitespace is trimmed.
func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return model.NewValidationError(field, "is required")
	}
	return nil
}

// MaxLen rejects values longer than limit characters (code points, not bytes).
func MaxLen(field, v string, limit int) error {
	if n := utf8.RuneCountInString(v); n > limit {
		return model.NewValidationError(field, fmt.Sprintf("exceeds %d characters", limit))
	}
	return nil
}

// Title validates a memory title: required and at most model.MaxTitleLength characters.
func Title(v string) error {
	if err := NonEmpty("title", v); err != nil {
		return err
	}
	return MaxLen("title", v, model.MaxTitleLength)
}

// MemoryFields validates the editable fields of a memory entry. Links are
// not checked; bad links only show up when rendered.
func MemoryFields(f model.MemoryFields) error {
	if err := Title(f.Title); err != nil {
		return err
	}
	return NonEmpty("content", f.Content)
}

// EchoContent validates an echo body.
func EchoContent(v string) error {
	if err := NonEmpty("content", v); err != nil {
		return err
	}
	return MaxLen("content", v, model.MaxEchoLength)
}

// ID rejects blank identifiers.
func ID(v string) error {
	return NonEmpty("id", v)
}
