// Package validator provides envelope validation.
package validator

import (
	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/message"
)

// EnvelopeValidator checks the minimal envelope fields of decoded messages.
// Record payloads are not validated.
type EnvelopeValidator struct{}

// NewEnvelopeValidator creates a new envelope validator.
func NewEnvelopeValidator() *EnvelopeValidator {
	return &EnvelopeValidator{}
}

// Validate validates an envelope.
func (v *EnvelopeValidator) Validate(e *message.Envelope) error {
	if e.Kind == "" {
		return &errors.ParseError{
			Reason: errors.MissingField,
			Field:  "type",
			Line:   e.Raw,
		}
	}

	if e.Kind == message.KindRecord && e.Stream == "" {
		return &errors.ParseError{
			Reason: errors.MissingField,
			Field:  "stream",
			Line:   e.Raw,
		}
	}

	if e.Kind == message.KindState && len(e.Value) == 0 {
		return &errors.ParseError{
			Reason: errors.MissingField,
			Field:  "value",
			Line:   e.Raw,
		}
	}

	return nil
}
