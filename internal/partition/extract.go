package partition

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Record fields recognised as carrying a creation time.
const (
	FieldObjectID  = "_id"
	FieldCreatedAt = "created_at"
)

var errNotObject = stderrors.New("record is not a JSON object")

// ExtractTime returns the creation time carried by a single record field.
// The boolean is false when the field is not recognised or its value does
// not decode; callers move on to the next field.
func ExtractTime(field string, value json.RawMessage) (time.Time, bool) {
	switch field {
	case FieldObjectID:
		return objectIDTime(value)
	case FieldCreatedAt:
		return createdAtTime(value)
	default:
		return time.Time{}, false
	}
}

// ObjectIDTime decodes a 24 character hex object identifier and returns the
// creation second embedded in its first four bytes, in UTC.
func ObjectIDTime(id string) (time.Time, bool) {
	if len(id) != 24 {
		return time.Time{}, false
	}

	b, err := hex.DecodeString(id)
	if err != nil {
		return time.Time{}, false
	}

	secs := binary.BigEndian.Uint32(b[0:4])
	return time.Unix(int64(secs), 0).UTC(), true
}

func objectIDTime(value json.RawMessage) (time.Time, bool) {
	var id string
	if err := json.Unmarshal(value, &id); err == nil {
		return ObjectIDTime(id)
	}

	// Extended JSON form: {"$oid": "..."}
	var ext struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(value, &ext); err != nil || ext.OID == "" {
		return time.Time{}, false
	}
	return ObjectIDTime(ext.OID)
}

func createdAtTime(value json.RawMessage) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return time.Time{}, false
	}

	s = strings.TrimSpace(s)
	if !hasDateSeparator(s) {
		return time.Time{}, false
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// hasDateSeparator rejects bare numbers, which dateparse would otherwise read
// as years, compact dates or epoch values.
func hasDateSeparator(s string) bool {
	return strings.ContainsAny(s, "-/ :") || strings.Count(s, ".") >= 2
}

// scanFields calls fn for every top-level field of record in document order
// until fn returns true.
func scanFields(record json.RawMessage, fn func(key string, value json.RawMessage) bool) error {
	dec := json.NewDecoder(bytes.NewReader(record))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errNotObject
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errNotObject
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}

		if fn(key, value) {
			return nil
		}
	}

	return nil
}
