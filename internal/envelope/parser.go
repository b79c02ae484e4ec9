// Package envelope decodes raw input lines into typed envelopes.
package envelope

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/internal/validator"
	"github.com/jittakal/targets3/pkg/message"
)

// Parser turns input lines into envelopes. It holds no state between calls.
type Parser struct {
	validator *validator.EnvelopeValidator
}

// NewParser creates a new envelope parser.
func NewParser() *Parser {
	return &Parser{
		validator: validator.NewEnvelopeValidator(),
	}
}

// Parse decodes one input line.
// Failures are returned as *errors.ParseError.
func (p *Parser) Parse(line string) (*message.Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return nil, malformed(line, err)
	}
	if fields == nil {
		return nil, malformed(line, stderrors.New("line is not a JSON object"))
	}

	env := &message.Envelope{Raw: line}

	kind, err := stringField(fields, "type")
	if err != nil {
		return nil, malformed(line, err)
	}
	env.Kind = message.Kind(kind)

	if env.Stream, err = stringField(fields, "stream"); err != nil {
		return nil, malformed(line, err)
	}

	env.Record = fields["record"]
	env.Value = fields["value"]

	if err := p.validator.Validate(env); err != nil {
		return nil, err
	}

	return env, nil
}

// stringField returns the string value of key, or "" when it is absent or null.
func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", nil
	}

	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q must be a string", key)
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

func malformed(line string, err error) *errors.ParseError {
	return &errors.ParseError{
		Reason: errors.MalformedSyntax,
		Line:   line,
		Err:    err,
	}
}
