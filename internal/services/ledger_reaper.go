package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"alfredoptarigan/job-orchestrator/internal/repositories"
)

// LedgerReaper releases PENDING dispatch reservations left behind by a process
// that died between reserving and finalizing. A released row no longer blocks
// its content hash, so a send the provider did accept may go out again.
type LedgerReaper interface {
	Start() error
	Stop()
	ReapOnce(ctx context.Context) int64
}

type ledgerReaper struct {
	dispatchRepo repositories.DispatchRepository
	staleAfter   time.Duration
	schedule     string
	now          func() time.Time
	cron         *cron.Cron
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewLedgerReaper(dispatchRepo repositories.DispatchRepository, staleAfter time.Duration, schedule string) LedgerReaper {
	ctx, cancel := context.WithCancel(context.Background())
	return &ledgerReaper{
		dispatchRepo: dispatchRepo,
		staleAfter:   staleAfter,
		schedule:     schedule,
		now:          func() time.Time { return time.Now().UTC() },
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start implements LedgerReaper.
func (r *ledgerReaper) Start() error {
	if r.staleAfter <= 0 {
		return fmt.Errorf("stale reservation age must be positive, got %s", r.staleAfter)
	}
	if _, err := r.cron.AddFunc(r.schedule, func() { r.ReapOnce(r.ctx) }); err != nil {
		return fmt.Errorf("failed to schedule ledger reaper %q: %w", r.schedule, err)
	}
	r.cron.Start()
	log.Printf("🧹 Ledger reaper scheduled %q for reservations older than %s", r.schedule, r.staleAfter)
	return nil
}

// Stop implements LedgerReaper.
func (r *ledgerReaper) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
	log.Println("🧹 Ledger reaper stopped")
}

// ReapOnce implements LedgerReaper. It returns the number of reservations
// released.
func (r *ledgerReaper) ReapOnce(ctx context.Context) int64 {
	released, err := r.dispatchRepo.ReleaseStale(ctx, r.now().Add(-r.staleAfter))
	if err != nil {
		log.Printf("⚠️  Failed to release stale reservations: %v\n", err)
		return 0
	}
	if released > 0 {
		log.Printf("🧹 Released %d stale dispatch reservations\n", released)
	}
	return released
}
