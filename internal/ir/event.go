package ir

// EventKind names an observable event emitted by the core.
type EventKind string

const (
	// Ledger mutations.
	EventBalanceIncreased EventKind = "BalanceIncreased"
	EventBalanceDecreased EventKind = "BalanceDecreased"
	EventEscrowFrozen     EventKind = "EscrowFrozen"

	// Issuance lifecycle.
	EventIssuanceCreated EventKind = "IssuanceCreated"
	EventIssuanceEngaged EventKind = "IssuanceEngaged"
	EventStateChanged    EventKind = "StateChanged"
	EventLineItemChanged EventKind = "LineItemChanged"

	// Registry deposit policy.
	EventDepositCollected EventKind = "DepositCollected"
	EventDepositBurned    EventKind = "DepositBurned"
	EventDepositRefunded  EventKind = "DepositRefunded"

	// Instrument lifecycle.
	EventInstrumentActivated   EventKind = "InstrumentActivated"
	EventInstrumentDeactivated EventKind = "InstrumentDeactivated"
)

// Event is one observable fact produced by an action. Only the fields that
// apply to Kind are set; the rest stay at their zero values.
type Event struct {
	Kind       EventKind    `json:"kind"`
	Instrument InstrumentID `json:"instrument,omitempty"`
	IssuanceID IssuanceID   `json:"issuance_id,omitempty"`

	// Ledger fields.
	Escrow EscrowID `json:"escrow,omitempty"`
	Owner  Address  `json:"owner,omitempty"`
	Asset  AssetID  `json:"asset,omitempty"`
	Amount int64    `json:"amount,omitempty"`

	// Transition fields.
	From IssuanceState `json:"from,omitempty"`
	To   IssuanceState `json:"to,omitempty"`

	// Line item fields.
	LineItemID    int64         `json:"line_item_id,omitempty"`
	LineItemState LineItemState `json:"line_item_state,omitempty"`

	// Counterparty is the other identity involved (taker on engagement,
	// recipient of a refunded deposit).
	Counterparty Address `json:"counterparty,omitempty"`
}

// EventSink receives events as they are produced.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) { f(e) }

// DiscardEvents is a sink that drops everything.
var DiscardEvents EventSink = EventSinkFunc(func(Event) {})

// CanonicalMap returns the event as a map with only its set fields, suitable
// for MarshalCanonical. States are rendered by name.
func (e Event) CanonicalMap() map[string]any {
	m := map[string]any{"kind": string(e.Kind)}
	if e.Instrument != 0 {
		m["instrument"] = int64(e.Instrument)
	}
	if e.IssuanceID != 0 {
		m["issuance_id"] = int64(e.IssuanceID)
	}
	if e.Escrow != "" {
		m["escrow"] = string(e.Escrow)
	}
	if e.Owner != "" {
		m["owner"] = string(e.Owner)
	}
	if e.Asset != "" {
		m["asset"] = string(e.Asset)
	}
	if e.Amount != 0 {
		m["amount"] = e.Amount
	}
	if e.Kind == EventStateChanged {
		m["from"] = e.From.String()
		m["to"] = e.To.String()
	}
	if e.LineItemID != 0 {
		m["line_item_id"] = e.LineItemID
		m["line_item_state"] = e.LineItemState.String()
	}
	if e.Counterparty != "" {
		m["counterparty"] = string(e.Counterparty)
	}
	return m
}
