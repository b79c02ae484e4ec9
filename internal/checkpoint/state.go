package checkpoint

import (
	"encoding/json"
)

// State is an immutable view of the latest checkpoint value.
//
// The value is opaque to the sink except for the per-stream bookmarks the
// partition resolver reads:
//
//	{"bookmarks": {"orders": {"replication_method": "LOG_BASED", "initial_full_table_complete": true}}}
type State struct {
	raw       json.RawMessage
	bookmarks map[string]bookmark
}

type bookmark struct {
	ReplicationMethod        string `json:"replication_method"`
	InitialFullTableComplete bool   `json:"initial_full_table_complete"`
}

// NewState builds a State from a raw checkpoint value. Values that are not
// objects, or whose bookmarks cannot be decoded, are kept verbatim with no
// bookmarks.
func NewState(raw json.RawMessage) *State {
	s := &State{
		raw:       append(json.RawMessage(nil), raw...),
		bookmarks: make(map[string]bookmark),
	}

	var doc struct {
		Bookmarks map[string]json.RawMessage `json:"bookmarks"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return s
	}

	for stream, rawBookmark := range doc.Bookmarks {
		var b bookmark
		if err := json.Unmarshal(rawBookmark, &b); err != nil {
			continue
		}
		s.bookmarks[stream] = b
	}

	return s
}

// ReplicationMethod returns the replication method bookmarked for stream,
// or "" when unknown.
func (s *State) ReplicationMethod(stream string) string {
	if s == nil {
		return ""
	}
	return s.bookmarks[stream].ReplicationMethod
}

// InitialFullTableComplete reports whether the initial full load of stream
// has completed. Unknown streams report false.
func (s *State) InitialFullTableComplete(stream string) bool {
	if s == nil {
		return false
	}
	return s.bookmarks[stream].InitialFullTableComplete
}

// Raw returns a copy of the checkpoint value as received.
func (s *State) Raw() json.RawMessage {
	if s == nil || s.raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), s.raw...)
}

// IsEmpty reports whether no checkpoint value is held.
func (s *State) IsEmpty() bool {
	return s == nil || len(s.raw) == 0
}
