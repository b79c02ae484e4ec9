package validator

import (
	stderrors "errors"
	"testing"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/message"
)

func TestNewEnvelopeValidator(t *testing.T) {
	validator := NewEnvelopeValidator()
	if validator == nil {
		t.Fatal("expected non-nil validator")
	}
}

func TestEnvelopeValidator_ValidateSuccess(t *testing.T) {
	validator := NewEnvelopeValidator()

	tests := []struct {
		name     string
		envelope *message.Envelope
	}{
		{
			name:     "record with stream",
			envelope: &message.Envelope{Kind: message.KindRecord, Stream: "orders"},
		},
		{
			name:     "state without stream",
			envelope: &message.Envelope{Kind: message.KindState, Value: []byte(`{}`)},
		},
		{
			name:     "schema envelope",
			envelope: &message.Envelope{Kind: message.KindSchema, Stream: "orders"},
		},
		{
			name:     "unknown kind passes through",
			envelope: &message.Envelope{Kind: "ACTIVATE_VERSION"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validator.Validate(tt.envelope); err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestEnvelopeValidator_ValidateMissingFields(t *testing.T) {
	validator := NewEnvelopeValidator()

	tests := []struct {
		name      string
		envelope  *message.Envelope
		wantField string
	}{
		{
			name:      "missing kind",
			envelope:  &message.Envelope{Stream: "orders"},
			wantField: "type",
		},
		{
			name:      "record without stream",
			envelope:  &message.Envelope{Kind: message.KindRecord},
			wantField: "stream",
		},
		{
			name:      "state without value",
			envelope:  &message.Envelope{Kind: message.KindState},
			wantField: "value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.envelope)
			if err == nil {
				t.Fatal("expected validation error")
			}

			var parseErr *errors.ParseError
			if !stderrors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %T", err)
			}
			if parseErr.Reason != errors.MissingField {
				t.Errorf("Reason = %v, want %v", parseErr.Reason, errors.MissingField)
			}
			if parseErr.Field != tt.wantField {
				t.Errorf("Field = %v, want %v", parseErr.Field, tt.wantField)
			}
		})
	}
}
