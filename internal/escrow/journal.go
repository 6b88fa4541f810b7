package escrow

import "github.com/roach88/instrumentd/internal/ir"

// Journal records the inverse of every mutation performed during one action,
// so the action can be undone as a whole.
//
// Journal is not safe for concurrent use; the owning manager serializes
// actions.
type Journal struct {
	undo []func()
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Record appends an inverse operation. A nil journal ignores the call.
func (j *Journal) Record(inverse func()) {
	if j == nil {
		return
	}
	j.undo = append(j.undo, inverse)
}

// Rollback runs every recorded inverse in reverse order and empties the journal.
func (j *Journal) Rollback() {
	if j == nil {
		return
	}
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Len returns the number of recorded inverses.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.undo)
}

// Scope is the per-action context shared by every ledger of a manager: the
// undo journal of the running action and the sink its events go to.
// Outside an action Journal is nil and events are discarded.
type Scope struct {
	Journal *Journal
	Sink    ir.EventSink
}

func (s *Scope) emit(e ir.Event) {
	if s.Sink != nil {
		s.Sink.Emit(e)
	}
}
