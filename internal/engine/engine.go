package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/registry"
	"github.com/roach88/instrumentd/internal/store"
)

// FlowTokenGenerator generates flow tokens for action correlation.
// Implemented by UUIDv7Generator and testutil.FixedFlowGenerator.
type FlowTokenGenerator interface {
	Generate() string
}

// WallClock is a TimeSource reading the system clock in unix seconds.
type WallClock struct{}

// Now implements ir.TimeSource.
func (WallClock) Now() ir.Timestamp { return ir.Timestamp(time.Now().Unix()) }

// Engine serializes actions against one registry and journals them.
//
// Thread-safety model:
//   - Execute(), View(): safe from any goroutine, serialized by a mutex
//   - Submit(): safe from any goroutine, processed by Run()
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	mu       sync.Mutex
	store    *store.Store
	clock    *Clock
	time     ir.TimeSource
	flowGen  FlowTokenGenerator
	logger   *slog.Logger
	registry *registry.Registry
	queue    *actionQueue

	// at is the invocation time of the action in flight; the registry
	// and every manager read it as their clock.
	at      *ir.FixedTime
	pending []ir.Event

	// poisoned is set once the journal falls behind memory.
	poisoned error

	owner   ir.Address
	regOpts []registry.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistryOptions passes options to the registry the engine builds.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(e *Engine) { e.regOpts = append(e.regOpts, opts...) }
}

// WithTimeSource sets where action times come from when an action has none.
// Default: WallClock.
func WithTimeSource(ts ir.TimeSource) Option {
	return func(e *Engine) { e.time = ts }
}

// WithFlowGenerator sets the flow token generator. Default: UUIDv7Generator.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(e *Engine) { e.flowGen = g }
}

// WithLogger sets the logger for the engine and its registry.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock starts the engine from a pre-configured logical clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine owning a fresh registry administered by owner.
// A nil store runs the engine without a journal.
func New(s *store.Store, owner ir.Address, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		clock:   NewClock(),
		time:    WallClock{},
		flowGen: UUIDv7Generator{},
		logger:  slog.Default(),
		queue:   newActionQueue(),
		at:      new(ir.FixedTime),
		owner:   owner,
	}
	for _, opt := range opts {
		opt(e)
	}

	regOpts := append([]registry.Option{registry.WithLogger(e.logger)}, e.regOpts...)
	regOpts = append(regOpts,
		registry.WithClock(e.at),
		registry.WithSink(ir.EventSinkFunc(func(ev ir.Event) { e.pending = append(e.pending, ev) })),
	)
	e.registry = registry.New(owner, regOpts...)
	return e
}

// Result is the outcome of one executed action.
type Result struct {
	Action ir.ActionRecord
	Events []ir.EventRecord

	// InstrumentID is set by activate_instrument.
	InstrumentID ir.InstrumentID
	// IssuanceID is set by create_issuance.
	IssuanceID ir.IssuanceID

	// Err is the domain error that rejected the action, if any. The action
	// is journaled either way.
	Err error
}

// Execute runs one action, journals it with its events and returns the
// result. A domain failure is reported in Result.Err; the returned error is
// reserved for infrastructure failures, after which the engine refuses
// further actions.
func (e *Engine) Execute(ctx context.Context, a Action) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.poisoned != nil {
		return Result{}, NewPoisonedError(e.poisoned)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	now := a.At
	if now == 0 {
		now = e.time.Now()
	}
	res, err := e.run(a, now, e.clock.Next(), e.flowGen.Generate())
	if err != nil {
		return Result{}, err
	}

	if e.store != nil {
		if err := e.store.WriteAction(ctx, res.Action, res.Events); err != nil {
			e.poisoned = err
			e.logger.Error("journal write failed, engine poisoned",
				"action_id", res.Action.ID,
				"seq", res.Action.Seq,
				"error", err,
			)
			return res, NewPersistError(res.Action.ID, err)
		}
	}
	return res, nil
}

// run applies a at time now and stamps the record. It never touches the
// journal.
func (e *Engine) run(a Action, now ir.Timestamp, seq int64, flow string) (Result, error) {
	id, err := ir.ActionID(a.Kind, a.Args(), now, seq)
	if err != nil {
		return Result{}, fmt.Errorf("action %s: %w", a.Kind, err)
	}

	*e.at = ir.FixedTime(now)
	e.pending = nil
	res := Result{Action: ir.ActionRecord{
		ID:            id,
		FlowToken:     flow,
		Kind:          a.Kind,
		Args:          a.Args(),
		Seq:           seq,
		Now:           now,
		Outcome:       ir.OutcomeOK,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}}

	if err := e.apply(a, &res); err != nil {
		res.Err = err
		res.Action.Outcome = ir.OutcomeError
		res.Action.ErrorCode = ir.CodeOf(err)
		res.Action.ErrorMessage = err.Error()
		e.pending = nil
		e.logger.Debug("action rejected",
			"kind", a.Kind,
			"seq", seq,
			"code", res.Action.ErrorCode,
			"error", err,
		)
		return res, nil
	}

	res.Events = make([]ir.EventRecord, 0, len(e.pending))
	for i, ev := range e.pending {
		rec, err := ir.NewEventRecord(res.Action, i, ev)
		if err != nil {
			return Result{}, fmt.Errorf("action %s: event %d: %w", a.Kind, i, err)
		}
		res.Events = append(res.Events, rec)
	}
	e.pending = nil
	e.logger.Debug("action executed",
		"kind", a.Kind,
		"seq", seq,
		"events", len(res.Events),
	)
	return res, nil
}

// apply routes a to the registry or to the manager of a.Instrument.
func (e *Engine) apply(a Action, res *Result) error {
	r := e.registry
	switch a.Kind {
	case KindFundRegistry:
		return r.Fund(a.Sender, a.Amount)
	case KindDefundRegistry:
		return r.Defund(a.Sender, a.Amount)
	case KindSetInstrumentDeposit:
		return r.SetInstrumentDeposit(a.Sender, a.Amount)
	case KindSetIssuanceDeposit:
		return r.SetIssuanceDeposit(a.Sender, a.Amount)
	case KindSetDepositPolicy:
		return r.SetDepositPolicy(a.Sender, registry.Policy(a.Policy))
	case KindActivateInstrument:
		id, err := r.ActivateInstrument(a.Sender, a.Name, a.Variant, registry.InstrumentParams{
			Admin:        a.Admin,
			NativeAsset:  a.NativeAsset,
			TerminatesAt: a.TerminatesAt,
			OverrideAt:   a.OverrideAt,
		})
		res.InstrumentID = id
		return err
	case KindDeactivate:
		return r.DeactivateInstrument(a.Sender, a.Instrument)
	case KindDeposit, KindWithdraw, KindAdminDeposit, KindAdminWithdraw,
		KindCreateIssuance, KindEngageIssuance, KindDepositToIssuance, KindNotifyCustomEvent:
	default:
		return ir.ValidationError("unknown action kind %q", a.Kind)
	}

	m, err := r.LookupInstrumentManager(a.Instrument)
	if err != nil {
		return err
	}
	switch a.Kind {
	case KindDeposit:
		return m.DepositToEscrow(a.Sender, a.Asset, a.Amount)
	case KindWithdraw:
		return m.WithdrawFromEscrow(a.Sender, a.Asset, a.Amount)
	case KindAdminDeposit:
		return m.AdminDeposit(a.Sender, a.Owner, a.Asset, a.Amount)
	case KindAdminWithdraw:
		return m.AdminWithdraw(a.Sender, a.Owner, a.Asset, a.Amount)
	case KindCreateIssuance:
		id, err := m.CreateIssuance(a.Sender, bytesOf(a.Params))
		res.IssuanceID = id
		return err
	case KindEngageIssuance:
		return m.EngageIssuance(a.Issuance, a.Sender, bytesOf(a.Data))
	case KindDepositToIssuance:
		return m.DepositToIssuance(a.Issuance, a.Sender, a.Asset, a.Amount)
	default:
		return m.NotifyCustomEvent(a.Issuance, a.Sender, a.Event, bytesOf(a.Payload))
	}
}

func bytesOf(j JSONText) []byte {
	if j == "" {
		return nil
	}
	return []byte(j)
}

// View runs fn against the registry while no action is in flight. fn must
// not mutate the registry.
func (e *Engine) View(fn func(*registry.Registry) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.registry)
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Poisoned returns the failure that poisoned the engine, or nil.
func (e *Engine) Poisoned() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.poisoned
}

// Owner returns the registry owner the engine was built for.
func (e *Engine) Owner() ir.Address {
	return e.owner
}
