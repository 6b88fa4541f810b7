// Package dispatch routes named custom events to the issuance state machine.
//
// The dispatcher holds no business logic: it resolves the target issuance,
// checks the event name against a fixed vocabulary, and hands the event to
// the machine, returning the machine's result untouched.
package dispatch

import (
	"log/slog"
	"slices"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/issuance"
)

// Variant-specific due checks.
const (
	EventLendingDue   = "lending_due"
	EventBorrowingDue = "borrowing_due"
)

// Vocabulary is the complete set of custom event names.
var Vocabulary = []string{
	issuance.EventCancel,
	issuance.EventEngagementDue,
	issuance.EventIssuanceDue,
	EventLendingDue,
	EventBorrowingDue,
}

// Known reports whether name is in the vocabulary.
func Known(name string) bool {
	return slices.Contains(Vocabulary, name)
}

// Handler is the machine side of dispatch.
type Handler interface {
	Understands(name string) bool
	Notify(c *issuance.Context, name string, payload []byte) error
}

// Resolver builds the action context for an issuance, or fails with
// ir.ErrCodeNotFound.
type Resolver func(id ir.IssuanceID) (*issuance.Context, error)

// Dispatcher routes custom events for one instrument.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger
}

// New creates a dispatcher in front of handler.
func New(handler Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handler: handler, logger: logger}
}

// Dispatch delivers event name with payload to issuance id.
func (d *Dispatcher) Dispatch(resolve Resolver, id ir.IssuanceID, name string, payload []byte) error {
	c, err := resolve(id)
	if err != nil {
		return err
	}
	if !Known(name) {
		return ir.ValidationError("unknown custom event %q", name).WithIssuance(id)
	}
	if !d.handler.Understands(name) {
		return ir.ValidationError("custom event %q does not apply to %s issuances", name, c.Issuance.Variant).WithIssuance(id)
	}
	d.logger.Debug("dispatching custom event",
		"issuance_id", id,
		"event", name,
		"sender", c.Sender)
	return d.handler.Notify(c, name, payload)
}
