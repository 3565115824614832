package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbscan/flash-searcher/internal/engine"
	"github.com/arbscan/flash-searcher/internal/executor"
	"github.com/arbscan/flash-searcher/internal/storage"
	"github.com/arbscan/flash-searcher/internal/venue"
)

const defaultBackoff = 5 * time.Second

// Metrics is the subset of the storage sink the driver needs; it exists so
// tests can stub persistence.
type Metrics interface {
	StartSession(ctx context.Context) (int64, error)
	EndSession(ctx context.Context, sessionID int64, totalScans, opportunitiesFound int) error
	RecordScan(ctx context.Context, rec storage.ScanRecord) (int64, error)
	RecordOpportunity(ctx context.Context, scanID int64, rec storage.OpportunityRecord) error
}

// Gateway abstracts trade submission for the same reason.
type Gateway interface {
	Execute(ctx context.Context, trade executor.Trade) (executor.Result, error)
}

// Config is the driver's wiring: resolved addresses, display metadata and
// the engine parameters. Routers maps venue names to their on-chain router
// addresses for execution.
type Config struct {
	Interval time.Duration
	Backoff  time.Duration // wait after a cycle where every venue failed
	Live     bool

	TokenBorrow       common.Address
	TokenIntermediate common.Address
	BorrowSymbol      string
	BorrowDecimals    int32
	InterDecimals     int32

	Routers map[string]common.Address
	Engine  engine.Config
}

// Scanner drives the scan cycle: fetch quotes, evaluate, report, persist,
// optionally execute. It owns the only state carried across cycles, the
// previous quote set used for change detection.
type Scanner struct {
	cfg      Config
	quoters  []venue.Quoter
	sink     Metrics // nil disables persistence
	gateway  Gateway // nil disables execution even in live mode
	logger   *slog.Logger
	reporter *reporter

	prev     []engine.VenueQuote
	sinkDown bool

	scans         int
	opportunities int
}

func New(cfg Config, quoters []venue.Quoter, sink Metrics, gateway Gateway, logger *slog.Logger) *Scanner {
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Scanner{
		cfg:      cfg,
		quoters:  quoters,
		sink:     sink,
		gateway:  gateway,
		logger:   logger,
		reporter: newReporter(cfg.BorrowSymbol, cfg.BorrowDecimals, cfg.InterDecimals),
	}
}

// Run drives scan cycles until ctx is cancelled. A session, if one was
// opened, is always closed with final totals, including on interrupt,
// using a fresh context since the loop's own context is already dead by
// then.
func (s *Scanner) Run(ctx context.Context) error {
	var sessionID int64
	if s.sink != nil {
		id, err := s.sink.StartSession(ctx)
		if err != nil {
			s.logger.Error("metrics sink unavailable, logging disabled", "error", err)
			s.sinkDown = true
		} else {
			sessionID = id
			s.logger.Info("session started", "session_id", id)
		}
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)

		select {
		case <-ctx.Done():
			s.closeSession(sessionID)
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scanner) closeSession(sessionID int64) {
	if s.sink == nil || s.sinkDown || sessionID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.sink.EndSession(ctx, sessionID, s.scans, s.opportunities); err != nil {
		s.logger.Error("failed to close session", "error", err)
		return
	}
	s.logger.Info("session closed", "scans", s.scans, "opportunities", s.opportunities)
}

// cycle runs one fetch -> evaluate -> report -> persist -> execute pass.
// Nothing in here is fatal: a bad cycle logs and yields to the next tick.
func (s *Scanner) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.scans++

	path := []common.Address{s.cfg.TokenBorrow, s.cfg.TokenIntermediate}
	quotes := venue.FetchQuotes(ctx, s.quoters, s.cfg.Engine.BorrowAmount, path, s.logger)
	if len(quotes) == 0 {
		s.logger.Warn("all venue quotes failed, backing off", "backoff", s.cfg.Backoff)
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.Backoff):
		}
		return
	}

	result, err := engine.Evaluate(quotes, s.cfg.Engine)
	if err != nil {
		// only reachable with a malformed config, which Validate blocks
		// before the loop starts
		s.logger.Error("evaluation failed", "error", err)
		return
	}

	snapshot := engine.ScanSnapshot{
		Timestamp:   time.Now(),
		Quotes:      quotes,
		Simulations: result.Simulations,
		Opportunity: result.Opportunity,
	}
	changed := s.changed(quotes)
	s.prev = quotes

	s.reporter.statusLine(snapshot, s.scans, changed)
	if snapshot.Opportunity != nil {
		s.opportunities++
		s.reporter.opportunity(snapshot.Opportunity, s.opportunities)
	}

	scanID := s.persistScan(ctx, snapshot, changed)

	if snapshot.Opportunity == nil {
		return
	}
	execResult := s.execute(ctx, snapshot.Opportunity)
	s.persistOpportunity(ctx, scanID, snapshot, execResult)
}

// changed compares the current quote set against the previous cycle's.
// Purely an output/logging optimization; correctness never depends on it.
func (s *Scanner) changed(quotes []engine.VenueQuote) bool {
	if len(quotes) != len(s.prev) {
		return true
	}
	for i, q := range quotes {
		if q.Venue != s.prev[i].Venue || q.AmountOut.Cmp(s.prev[i].AmountOut) != 0 {
			return true
		}
	}
	return false
}

func (s *Scanner) persistScan(ctx context.Context, snap engine.ScanSnapshot, changed bool) int64 {
	if s.sink == nil || s.sinkDown {
		return 0
	}

	rec := storage.ScanRecord{
		Timestamp:    snap.Timestamp,
		Quotes:       make(map[string]string, len(snap.Quotes)),
		SpreadPct:    bestSpreadPct(snap.Simulations),
		PriceChanged: changed,
	}
	for _, q := range snap.Quotes {
		rec.Quotes[q.Venue] = s.reporter.interAmount(q.AmountOut)
	}

	scanID, err := s.sink.RecordScan(ctx, rec)
	if err != nil {
		// a write that lost the race with shutdown is not a sink outage;
		// the session close still has to go through
		if ctx.Err() != nil {
			return 0
		}
		// one log line, then persistence stays off for the session so a
		// dead database cannot dominate the loop
		s.logger.Error("metrics sink failed, disabling persistence", "error", err)
		s.sinkDown = true
		return 0
	}
	return scanID
}

func (s *Scanner) persistOpportunity(ctx context.Context, scanID int64, snap engine.ScanSnapshot, exec *executor.Result) {
	if s.sink == nil || s.sinkDown || scanID == 0 {
		return
	}

	opp := snap.Opportunity
	rec := storage.OpportunityRecord{
		Timestamp:    snap.Timestamp,
		BuyVenue:     opp.BuyVenue,
		SellVenue:    opp.SellVenue,
		SpreadPct:    opp.SpreadBps / 100,
		BorrowAmount: s.reporter.baseAmount(opp.BorrowAmount),
		GrossProfit:  s.reporter.baseAmount(opp.GrossProfit),
		NetProfit:    s.reporter.baseAmount(opp.NetProfit),
	}
	if exec != nil {
		rec.Executed = exec.Status == executor.StatusConfirmed
		if exec.TxHash != (common.Hash{}) {
			rec.TxHash = exec.TxHash.Hex()
		}
	}

	if err := s.sink.RecordOpportunity(ctx, scanID, rec); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("metrics sink failed, disabling persistence", "error", err)
		s.sinkDown = true
	}
}

// execute hands the opportunity to the gateway. Gateway failures are
// reported and classified, never propagated: the loop moves on either way.
func (s *Scanner) execute(ctx context.Context, opp *engine.TradeSimulation) *executor.Result {
	if s.gateway == nil {
		return nil
	}
	if !s.cfg.Live {
		s.logger.Info("dry run, skipping execution",
			"buy", opp.BuyVenue, "sell", opp.SellVenue,
			"net_profit", s.reporter.baseAmount(opp.NetProfit))
		return nil
	}

	buyRouter, ok := s.cfg.Routers[opp.BuyVenue]
	if !ok {
		s.logger.Error("no router address for buy venue", "venue", opp.BuyVenue)
		return nil
	}
	sellRouter, ok := s.cfg.Routers[opp.SellVenue]
	if !ok {
		s.logger.Error("no router address for sell venue", "venue", opp.SellVenue)
		return nil
	}

	trade := executor.Trade{
		TokenBorrow:  s.cfg.TokenBorrow,
		BorrowAmount: opp.BorrowAmount,
		IsBase:       true,
		BuyRouter:    buyRouter,
		SellRouter:   sellRouter,
		PathBuy:      []common.Address{s.cfg.TokenBorrow, s.cfg.TokenIntermediate},
		PathSell:     []common.Address{s.cfg.TokenIntermediate, s.cfg.TokenBorrow},
		MinProfit:    s.cfg.Engine.MinProfit,
	}

	res, err := s.gateway.Execute(ctx, trade)
	if err != nil {
		s.logger.Error("execution failed", "error", err)
		return nil
	}

	switch res.Status {
	case executor.StatusConfirmed:
		s.logger.Info("arbitrage executed", "tx", res.TxHash.Hex(), "gas_used", res.GasUsed)
	case executor.StatusReverted:
		// most commonly the profit fell below min_profit by inclusion time
		s.logger.Warn("arbitrage reverted on-chain", "tx", res.TxHash.Hex(),
			"reason", "profit below threshold at execution or unknown revert")
	case executor.StatusTimeout:
		s.logger.Warn("receipt wait timed out", "tx", res.TxHash.Hex())
	}
	return &res
}

func bestSpreadPct(sims []engine.TradeSimulation) float64 {
	best := 0.0
	for _, sim := range sims {
		if sim.SpreadBps > best {
			best = sim.SpreadBps
		}
	}
	return best / 100
}

// verify the real sink satisfies the driver interface
var _ Metrics = (*storage.Sink)(nil)
