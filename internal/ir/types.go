package ir

import "fmt"

// Address identifies a party (maker, taker, FSP, registry owner) or a
// custodial account such as an issuance escrow.
type Address string

// AssetID identifies a fungible asset held in an escrow ledger.
type AssetID string

// EscrowID identifies an escrow ledger inside its owning manager's arena.
// Instrument escrows and issuance escrows share one id space per manager.
type EscrowID string

// InstrumentID identifies an activated instrument in the registry.
// Ids are allocated sequentially starting at 1.
type InstrumentID int64

// IssuanceID identifies an issuance within one instrument manager.
// Ids are allocated sequentially starting at 1 and never reused.
type IssuanceID int64

// Timestamp is a Unix time in seconds. All due-date arithmetic uses it.
type Timestamp int64

// Day is the number of seconds in one day.
const Day Timestamp = 24 * 60 * 60

// NativeAsset is the default settlement asset of a ledger. It is tracked like
// any other asset but excluded from asset listings.
const NativeAsset AssetID = "native"

// IssuanceState is the lifecycle state of an issuance.
// Numeric values match the external issuance-data wire format.
type IssuanceState int

const (
	StateUnknown            IssuanceState = 0
	StateInitiated          IssuanceState = 1
	StateEngageable         IssuanceState = 2
	StateEngaged            IssuanceState = 3
	StateUnfunded           IssuanceState = 4
	StateCancelled          IssuanceState = 5
	StateCompleteNotEngaged IssuanceState = 6
	StateCompleteEngaged    IssuanceState = 7
	StateDelinquent         IssuanceState = 8
)

var stateNames = map[IssuanceState]string{
	StateUnknown:            "Unknown",
	StateInitiated:          "Initiated",
	StateEngageable:         "Engageable",
	StateEngaged:            "Engaged",
	StateUnfunded:           "Unfunded",
	StateCancelled:          "Cancelled",
	StateCompleteNotEngaged: "CompleteNotEngaged",
	StateCompleteEngaged:    "CompleteEngaged",
	StateDelinquent:         "Delinquent",
}

// String returns the state name used in logs, journals and scenarios.
func (s IssuanceState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("IssuanceState(%d)", int(s))
}

// Terminal reports whether no further transition may leave s.
func (s IssuanceState) Terminal() bool {
	switch s {
	case StateUnfunded, StateCancelled, StateCompleteNotEngaged, StateCompleteEngaged, StateDelinquent:
		return true
	}
	return false
}

// ParseState converts a state name back to its value.
func ParseState(name string) (IssuanceState, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return StateUnknown, fmt.Errorf("unknown issuance state %q", name)
}

// LineItemType classifies a supplemental line item.
type LineItemType int

const (
	LineItemUnknown  LineItemType = 0
	LineItemTransfer LineItemType = 1
)

// LineItemState is the small state machine carried by each line item.
type LineItemState int

const (
	LineItemStateUnknown    LineItemState = 0
	LineItemStateInitiated  LineItemState = 1
	LineItemStateEngaged    LineItemState = 2
	LineItemStatePaid       LineItemState = 3
	LineItemStateDelinquent LineItemState = 4
)

// String returns the line item state name.
func (s LineItemState) String() string {
	switch s {
	case LineItemStateInitiated:
		return "Initiated"
	case LineItemStateEngaged:
		return "Engaged"
	case LineItemStatePaid:
		return "Paid"
	case LineItemStateDelinquent:
		return "Delinquent"
	}
	return "Unknown"
}

// CanMoveTo reports whether the line item machine allows s -> next.
// Initiated -> Paid is allowed for obligations settled in the same action
// that engages them.
func (s LineItemState) CanMoveTo(next LineItemState) bool {
	switch s {
	case LineItemStateInitiated:
		return next == LineItemStateEngaged || next == LineItemStatePaid
	case LineItemStateEngaged:
		return next == LineItemStatePaid || next == LineItemStateDelinquent
	}
	return false
}

// LineItem is a sub-obligation inside an issuance, e.g. one leg of a swap or
// the repayment owed by a borrower.
type LineItem struct {
	ID      int64         `json:"id"`
	Type    LineItemType  `json:"type"`
	State   LineItemState `json:"state"`
	Obligor Address       `json:"obligor"`
	Claimor Address       `json:"claimor"`
	Asset   AssetID       `json:"asset"`
	Amount  int64         `json:"amount"`
	DueAt   Timestamp     `json:"due_at"`
}

// IssuanceProperties is the structured record exposed to external readers.
// It carries everything in the issuance data model except variant terms.
type IssuanceProperties struct {
	IssuanceID      IssuanceID    `json:"issuance_id"`
	Maker           Address       `json:"maker"`
	Taker           Address       `json:"taker,omitempty"`
	EngagementDueAt Timestamp     `json:"engagement_due_at"`
	IssuanceDueAt   Timestamp     `json:"issuance_due_at"`
	CreatedAt       Timestamp     `json:"created_at"`
	EngagedAt       Timestamp     `json:"engaged_at"`
	SettledAt       Timestamp     `json:"settled_at"`
	EscrowID        EscrowID      `json:"escrow_id"`
	State           IssuanceState `json:"state"`
	LineItems       []LineItem    `json:"line_items"`
}

// TimeSource supplies the invocation time of the action being executed.
// Due-date checks compare against it; nothing reads the wall clock directly.
type TimeSource interface {
	Now() Timestamp
}

// FixedTime is a TimeSource that always returns itself.
type FixedTime Timestamp

// Now implements TimeSource.
func (t FixedTime) Now() Timestamp { return Timestamp(t) }
