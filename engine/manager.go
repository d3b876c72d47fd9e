package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/royalbidz/bidcore/clock"
	"github.com/royalbidz/bidcore/core"
	"github.com/royalbidz/bidcore/eventsink"
	"github.com/royalbidz/bidcore/ledger"
)

// ErrUnknownAuction is returned for commands naming an auction the engine
// has never seen.
var ErrUnknownAuction = errors.New("unknown auction")

// Options tunes engine behavior.
type Options struct {
	// CommandBuffer is the per-auction command queue depth. Zero means
	// DefaultCommandBuffer.
	CommandBuffer int
	// CloseOnBuyNow makes a bid that reaches the buy-now price trigger
	// an immediate close-out in the same serialized step. Off by
	// default: the flag on the accepted bid still tells callers the
	// price was met.
	CloseOnBuyNow bool
}

// DefaultCommandBuffer is the command queue depth used when Options leaves
// it zero.
const DefaultCommandBuffer = 256

type auctionHandle struct {
	proc     *Processor
	closeout *Closeout
}

// Manager is the engine's front door: it registers auctions, routes
// lifecycle commands and bid submissions to the owning processor, and
// serves lock-free snapshots to read-side consumers.
type Manager struct {
	clk  clock.Clock
	sink eventsink.Sink
	log  *logrus.Logger
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	auctions map[uuid.UUID]*auctionHandle
	stopped  bool
}

// NewManager wires an engine from its collaborators. A nil sink discards
// events; a nil clock uses the wall clock.
func NewManager(clk clock.Clock, sink eventsink.Sink, log *logrus.Logger, opts Options) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if sink == nil {
		sink = eventsink.Discard
	}
	if log == nil {
		log = logrus.New()
	}
	if opts.CommandBuffer <= 0 {
		opts.CommandBuffer = DefaultCommandBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		clk:      clk,
		sink:     sink,
		log:      log,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		auctions: make(map[uuid.UUID]*auctionHandle),
	}
}

// Create registers a new auction in Draft status and starts its
// processor. Bids are rejected until Open.
func (m *Manager) Create(cfg core.AuctionConfig) error {
	l, err := ledger.New(cfg)
	if err != nil {
		return fmt.Errorf("create auction: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if _, exists := m.auctions[cfg.AuctionID]; exists {
		return fmt.Errorf("auction %s already exists", cfg.AuctionID)
	}

	proc := newProcessor(l, m.clk, m.sink, m.log, m.opts)
	m.auctions[cfg.AuctionID] = &auctionHandle{
		proc:     proc,
		closeout: newCloseout(proc, m.clk, m.log),
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		proc.run(m.ctx)
	}()

	m.log.WithFields(logrus.Fields{
		"auction_id":     cfg.AuctionID,
		"starting_price": cfg.StartingPrice,
		"increment":      cfg.Increment,
	}).Info("auction created")
	return nil
}

// Schedule records the planned start time, moving Draft to Scheduled.
// Actually opening at that time remains the caller's trigger.
func (m *Manager) Schedule(ctx context.Context, auctionID uuid.UUID, startTime time.Time) error {
	h, err := m.handle(auctionID)
	if err != nil {
		return err
	}
	_, err = h.proc.do(ctx, command{kind: cmdSchedule, startTime: startTime})
	return err
}

// Open starts the bidding window and arms the close-out deadline.
func (m *Manager) Open(ctx context.Context, auctionID uuid.UUID, deadline time.Time) error {
	h, err := m.handle(auctionID)
	if err != nil {
		return err
	}
	if _, err := h.proc.do(ctx, command{kind: cmdOpen, deadline: deadline}); err != nil {
		return err
	}
	h.closeout.Arm(m.ctx, deadline)
	return nil
}

// Submit evaluates one bid against its auction, in FIFO order with every
// other submission to that auction. It returns either the accepted bid or
// a typed rejection; err covers engine-level failures only (unknown
// auction, shutdown, abandoned context).
func (m *Manager) Submit(ctx context.Context, req core.BidRequest) (core.AcceptedBid, *core.Rejection, error) {
	h, err := m.handle(req.AuctionID)
	if err != nil {
		return core.AcceptedBid{}, nil, err
	}
	res, err := h.proc.do(ctx, command{kind: cmdBid, req: req})
	if err != nil {
		return core.AcceptedBid{}, nil, err
	}
	return res.accepted, res.rejection, nil
}

// CloseNow ends the auction immediately and returns the final result. If
// the deadline fires concurrently, both paths observe the identical
// memoized result.
func (m *Manager) CloseNow(ctx context.Context, auctionID uuid.UUID) (core.ClosedAuctionResult, error) {
	h, err := m.handle(auctionID)
	if err != nil {
		return core.ClosedAuctionResult{}, err
	}
	return h.closeout.FireNow(ctx)
}

// Cancel aborts the auction from any pre-Closed status. Fails with
// ledger.ErrAlreadyClosed once a regular close-out has happened.
func (m *Manager) Cancel(ctx context.Context, auctionID uuid.UUID) (core.ClosedAuctionResult, error) {
	h, err := m.handle(auctionID)
	if err != nil {
		return core.ClosedAuctionResult{}, err
	}
	res, err := h.proc.do(ctx, command{kind: cmdCancel})
	if err != nil {
		return res.closed, err
	}
	h.closeout.Disarm()
	return res.closed, nil
}

// Snapshot returns the auction's current immutable view. Safe from any
// goroutine; never blocks on bid traffic.
func (m *Manager) Snapshot(auctionID uuid.UUID) (*core.LedgerView, error) {
	h, err := m.handle(auctionID)
	if err != nil {
		return nil, err
	}
	return h.proc.Ledger().Snapshot(), nil
}

// Shutdown stops every processor and waits for them to drain, bounded by
// ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.Info("engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown: %w", ctx.Err())
	}
}

func (m *Manager) handle(auctionID uuid.UUID) (*auctionHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return nil, ErrStopped
	}
	h, ok := m.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAuction, auctionID)
	}
	return h, nil
}
