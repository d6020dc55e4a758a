package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/liquidator/internal/auction"
	"github.com/roach88/liquidator/internal/deposit"
	"github.com/roach88/liquidator/internal/engine"
	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/lifecycle"
	"github.com/roach88/liquidator/internal/source"
)

// Lifecycle errors.
var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("orchestrator already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("orchestrator stopped")
)

const tracerName = "github.com/roach88/liquidator/internal/orchestrator"

// DefaultStopTimeout bounds how long Stop waits for queued actions before
// cancelling the submissions still in flight.
const DefaultStopTimeout = 10 * time.Second

// ErrorHandler observes an event that could not be applied.
// It runs on the entity's dispatch goroutine.
type ErrorHandler func(env ir.Envelope, err error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithJournal sets the action journal. Default: a MemoryJournal.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) {
		o.journal = j
	}
}

// WithIDGenerator sets the generator for bid IDs. Default: UUIDv7.
func WithIDGenerator(gen engine.IDGenerator) Option {
	return func(o *Orchestrator) {
		o.ids = gen
	}
}

// WithTracer sets the tracer. Default: the global otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithStopTimeout sets how long Stop waits for the outbox to drain before
// cancelling in-flight submissions. Default: DefaultStopTimeout.
func WithStopTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.stopTimeout = d
	}
}

// WithErrorHandler registers a handler for event failures, called in
// addition to the error log line.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *Orchestrator) {
		o.onError = h
	}
}

// routeKey scopes an entity address to its family so that a deposit and an
// auction sharing an address never share a mailbox.
type routeKey struct {
	family ir.Family
	addr   common.Address
}

// Orchestrator owns the lifecycle stores and managers for both families
// and routes events and actions between them and the outside world.
type Orchestrator struct {
	deposits   *deposit.Store
	auctions   *auction.Store
	depositMgr *deposit.Manager
	auctionMgr *auction.Manager

	inbound *engine.Dispatcher[routeKey, ir.Envelope]
	outbox  *engine.Dispatcher[common.Address, ir.Action]

	submitter ActionSubmitter
	journal   Journal
	ids       engine.IDGenerator
	logger    *slog.Logger
	tracer    trace.Tracer
	onError   ErrorHandler

	stopTimeout time.Duration
	// halted is cancelled when Stop gives up on the outbox; every
	// submission context is derived from it.
	halted context.Context
	halt   context.CancelFunc

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopDone chan struct{}
	cancel   context.CancelFunc
	subs     sync.WaitGroup
	subErrs  []error
}

// New creates an orchestrator that submits actions through submitter.
func New(submitter ActionSubmitter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deposits:  deposit.NewStore(),
		auctions:  auction.NewStore(),
		submitter: submitter,
		journal:   NewMemoryJournal(),
		ids:       engine.UUIDv7Generator{},
		logger:    slog.Default(),

		stopTimeout: DefaultStopTimeout,
		stopDone:    make(chan struct{}),
	}
	o.halted, o.halt = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	o.depositMgr = deposit.NewManager(o.deposits, o, o.logger)
	o.auctionMgr = auction.NewManager(o.auctions, o.logger)

	o.inbound = engine.NewDispatcher("inbound", o.handleEvent,
		engine.WithErrorHook(o.eventFailed),
		engine.WithLogger[routeKey, ir.Envelope](o.logger),
	)
	o.outbox = engine.NewDispatcher("outbox", o.handleAction,
		engine.WithErrorHook(o.actionFailed),
		engine.WithLogger[common.Address, ir.Action](o.logger),
	)
	return o
}

// Deposits returns a read-only view of the deposit mirror.
func (o *Orchestrator) Deposits() deposit.View {
	return o.deposits
}

// Auctions returns a read-only view of the auction mirror.
func (o *Orchestrator) Auctions() auction.View {
	return o.auctions
}

// Start subscribes to both sources. Either source may be nil.
// Subscriptions run until their log is exhausted, they fail, or ctx is
// cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context, deposits, auctions source.Source) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return ErrAlreadyStarted
	}
	if o.stopped {
		return ErrStopped
	}
	o.started = true

	subCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.subscribe(subCtx, ir.FamilyDeposit, deposits)
	o.subscribe(subCtx, ir.FamilyAuction, auctions)

	o.logger.Info("orchestrator started",
		"deposit_source", deposits != nil,
		"auction_source", auctions != nil,
	)
	return nil
}

func (o *Orchestrator) subscribe(ctx context.Context, family ir.Family, src source.Source) {
	if src == nil {
		return
	}
	o.subs.Add(1)
	go func() {
		defer o.subs.Done()

		err := src.Subscribe(ctx, func(env ir.Envelope) {
			if err := o.Dispatch(ctx, env); err != nil {
				o.logger.Warn("envelope dropped",
					"family", family,
					"seq", env.Seq,
					"error", err,
				)
			}
		})
		switch {
		case err == nil:
			o.logger.Info("source exhausted", "family", family)
		case errors.Is(err, context.Canceled):
			o.logger.Info("source stopped", "family", family)
		default:
			o.logger.Error("source failed", "family", family, "error", err)
			o.mu.Lock()
			o.subErrs = append(o.subErrs, fmt.Errorf("%s source: %w", family, err))
			o.mu.Unlock()
		}
	}()
}

// Dispatch queues one envelope for its entity. It is the entry point used
// by the subscribers; callers that feed events directly (replays, tests)
// may use it too. The handler runs with a context that is not cancelled by
// Stop, so an accepted envelope is always applied in full. Submissions it
// triggers are still bound to Stop.
func (o *Orchestrator) Dispatch(ctx context.Context, env ir.Envelope) error {
	if env.Event == nil {
		return fmt.Errorf("envelope seq %d has no event", env.Seq)
	}
	key := routeKey{family: env.Event.Family(), addr: env.Event.Key()}
	return o.inbound.Dispatch(context.WithoutCancel(ctx), key, env)
}

// Wait blocks until every subscription has returned and all queued events
// and actions have been handled. It returns the subscriptions' read
// failures, if any.
func (o *Orchestrator) Wait() error {
	o.subs.Wait()
	o.Flush()

	o.mu.Lock()
	defer o.mu.Unlock()
	return errors.Join(o.subErrs...)
}

// Stop cancels the subscriptions and stops accepting events. Events
// already queued are applied before Stop returns; applied mutations are
// never rolled back. Queued actions get the stop timeout to finish, after
// which in-flight submissions are cancelled and journaled as failed.
//
// Stop is idempotent and safe to call concurrently; every call returns
// once shutdown is complete.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		<-o.stopDone
		return
	}
	o.stopped = true
	cancel := o.cancel
	o.mu.Unlock()
	defer close(o.stopDone)

	if cancel != nil {
		cancel()
	}
	o.subs.Wait()

	o.inbound.Close()
	o.inbound.Flush()
	o.outbox.Close()
	if !o.drainOutbox(o.stopTimeout) {
		o.logger.Warn("outbox did not drain, cancelling submissions",
			"timeout", o.stopTimeout,
			"pending", o.outbox.Pending(),
		)
		o.halt()
		o.outbox.Flush()
	}
	o.halt()

	o.logger.Info("orchestrator stopped",
		"deposits", o.deposits.Count(),
		"auctions", o.auctions.Count(),
	)
}

// drainOutbox waits up to timeout for the outbox to go idle.
func (o *Orchestrator) drainOutbox(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		o.outbox.Flush()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Flush blocks until the inbound and outbound queues are idle.
func (o *Orchestrator) Flush() {
	o.inbound.Flush()
	o.outbox.Flush()
}

// NotifyDepositStartedLiquidation queues the liquidation-started notice for
// deposit. It never blocks on the submitter.
func (o *Orchestrator) NotifyDepositStartedLiquidation(ctx context.Context, addr common.Address) {
	o.enqueue(ctx, ir.NewNotice(ir.ActionLiquidationStartedNotice, addr))
}

// NotifyDepositLiquidated queues the liquidated notice for deposit.
func (o *Orchestrator) NotifyDepositLiquidated(ctx context.Context, addr common.Address) {
	o.enqueue(ctx, ir.NewNotice(ir.ActionLiquidatedNotice, addr))
}

func (o *Orchestrator) enqueue(ctx context.Context, a ir.Action) {
	if err := o.outbox.Dispatch(ctx, a.Target, a); err != nil {
		o.logger.Error("action dropped",
			"action_id", a.ID,
			"kind", a.Kind,
			"target", a.Target.Hex(),
			"error", err,
		)
	}
}

// PlaceBid submits a bid on auction and returns the submitter's result.
// Every call is a new action; bids are never deduplicated.
func (o *Orchestrator) PlaceBid(ctx context.Context, auctionAddr common.Address, bidAmount, minCollateral *big.Int) error {
	a := ir.NewBid(o.ids.Generate(), auctionAddr, bidAmount, minCollateral)
	return o.handleAction(ctx, auctionAddr, a)
}

// handleEvent is the inbound dispatcher handler.
func (o *Orchestrator) handleEvent(ctx context.Context, key routeKey, env ir.Envelope) error {
	ctx, span := o.tracer.Start(ctx, "handle "+string(env.Event.Name()),
		trace.WithAttributes(
			attribute.String("event.family", string(key.family)),
			attribute.String("event.key", key.addr.Hex()),
			attribute.Int64("event.seq", env.Seq),
		),
	)
	defer span.End()

	var err error
	switch key.family {
	case ir.FamilyDeposit:
		err = o.depositMgr.Handle(ctx, env)
	case ir.FamilyAuction:
		err = o.auctionMgr.Handle(ctx, env)
	default:
		err = fmt.Errorf("unknown event family %q", key.family)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	o.logger.Debug("event applied",
		"family", key.family,
		"event", env.Event.Name(),
		"key", key.addr.Hex(),
		"seq", env.Seq,
	)
	return nil
}

// eventFailed logs a failed event with full context and continues.
// Retrying would reorder the entity's stream, so nothing is retried.
func (o *Orchestrator) eventFailed(_ context.Context, key routeKey, env ir.Envelope, err error) {
	o.logger.Error("event handling failed",
		"error", err,
		"code", lifecycle.CodeOf(err),
		"family", key.family,
		"event", env.Event.Name(),
		"key", key.addr.Hex(),
		"seq", env.Seq,
	)
	if o.onError != nil {
		o.onError(env, err)
	}
}

// handleAction claims a in the journal and, if this is the first claim,
// hands it to the submitter and records the outcome.
func (o *Orchestrator) handleAction(ctx context.Context, target common.Address, a ir.Action) error {
	ctx, span := o.tracer.Start(ctx, "submit "+string(a.Kind),
		trace.WithAttributes(
			attribute.String("action.id", a.ID),
			attribute.String("action.target", target.Hex()),
		),
	)
	defer span.End()

	claimed, err := o.journal.ClaimAction(ctx, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("claim action %s: %w", a.ID, err)
	}
	if !claimed {
		span.SetAttributes(attribute.Bool("action.duplicate", true))
		o.logger.Info("action already journaled, skipping",
			"action_id", a.ID,
			"kind", a.Kind,
			"target", target.Hex(),
		)
		return nil
	}

	submitCtx, cancel := o.submitContext(ctx)
	submitErr := o.submit(submitCtx, a)
	cancel()
	if err := o.journal.SettleAction(ctx, a.ID, submitErr); err != nil {
		o.logger.Error("journal settle failed", "action_id", a.ID, "error", err)
	}
	if submitErr != nil {
		span.RecordError(submitErr)
		span.SetStatus(codes.Error, submitErr.Error())
		return fmt.Errorf("submit %s %s: %w", a.Kind, a.ID, submitErr)
	}

	o.logger.Info("action submitted",
		"action_id", a.ID,
		"kind", a.Kind,
		"target", target.Hex(),
	)
	return nil
}

// submitContext derives the context for one submission. It is cancelled
// with parent or when Stop halts the outbox, whichever comes first.
func (o *Orchestrator) submitContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	unhook := context.AfterFunc(o.halted, cancel)
	return ctx, func() {
		unhook()
		cancel()
	}
}

func (o *Orchestrator) submit(ctx context.Context, a ir.Action) error {
	switch a.Kind {
	case ir.ActionLiquidationStartedNotice:
		return o.submitter.SubmitDepositLiquidationStartedNotice(ctx, a.Target)
	case ir.ActionLiquidatedNotice:
		return o.submitter.SubmitDepositLiquidatedNotice(ctx, a.Target)
	case ir.ActionBid:
		return o.submitter.SubmitBid(ctx, a.Target, a.BidAmount, a.MinCollateral)
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// actionFailed logs a failed outbound action. Failures are not retried.
func (o *Orchestrator) actionFailed(_ context.Context, target common.Address, a ir.Action, err error) {
	o.logger.Error("action failed",
		"error", err,
		"action_id", a.ID,
		"kind", a.Kind,
		"target", target.Hex(),
	)
}
