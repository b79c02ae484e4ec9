package ingest

// State is the lifecycle position of the ingestion loop.
type State int32

const (
	StateReady State = iota
	StateAccumulating
	StateFlushing
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateAccumulating:
		return "ACCUMULATING"
	case StateFlushing:
		return "FLUSHING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
