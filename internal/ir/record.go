package ir

// Outcome is the result class of a journaled action.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// ActionRecord is one journaled action.
//
// Args holds only canonical JSON values (strings and int64). Failed actions
// are journaled too, with their error code and message and no events.
type ActionRecord struct {
	ID            string
	FlowToken     string
	Kind          string
	Args          map[string]any
	Seq           int64
	Now           Timestamp
	Outcome       Outcome
	ErrorCode     ErrorCode
	ErrorMessage  string
	EngineVersion string
	IRVersion     string
}

// EventRecord is one journaled event. Index is its position within the
// events of action ActionID; Seq repeats the action's seq for ordering.
type EventRecord struct {
	ID         string
	ActionID   string
	Index      int
	Seq        int64
	Kind       EventKind
	Instrument InstrumentID
	IssuanceID IssuanceID
	Payload    map[string]any
}

// NewEventRecord stamps e as the index-th event of action.
func NewEventRecord(action ActionRecord, index int, e Event) (EventRecord, error) {
	id, err := EventID(action.ID, index, e)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		ID:         id,
		ActionID:   action.ID,
		Index:      index,
		Seq:        action.Seq,
		Kind:       e.Kind,
		Instrument: e.Instrument,
		IssuanceID: e.IssuanceID,
		Payload:    e.CanonicalMap(),
	}, nil
}
