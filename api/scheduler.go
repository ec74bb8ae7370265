/*
scheduler.go - Automated month-close scheduler

PURPOSE:
  Periodically looks for calendar months that have fully ended, had
  financial activity, and were never frozen, and freezes them so the
  books close even when nobody clicks the button.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only ever targets the previous month or older: the current month is
    still accumulating and must stay live
  - Skips months that are already frozen (insert-once table makes the
    race with a concurrent manual freeze harmless)
  - Lookback is bounded so a long-dormant deployment does not suddenly
    close years of history unattended

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Lookback: How many ended months to consider (default: 3)
  - Enabled: Whether scheduler is active (default: false; freezing is
    normally an explicit owner action)

USAGE:
  scheduler := NewFreezeScheduler(agg, finStore)
  scheduler.Enabled = true
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: FreezeMonth endpoint (manual close)
  - finance/aggregator.go: Freeze
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/classledger/settlement-engine/finance"
	"github.com/classledger/settlement-engine/ledger"
)

// FreezeActor is recorded as FrozenBy on summaries the scheduler closes.
const FreezeActor = "auto-freeze"

// FreezeScheduler closes ended months automatically.
type FreezeScheduler struct {
	Agg           *finance.Aggregator
	Fin           finance.Store
	CheckInterval time.Duration
	Lookback      int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewFreezeScheduler creates a scheduler with defaults. It is disabled
// until the caller opts in.
func NewFreezeScheduler(agg *finance.Aggregator, fin finance.Store) *FreezeScheduler {
	return &FreezeScheduler{
		Agg:           agg,
		Fin:           fin,
		CheckInterval: 1 * time.Hour,
		Lookback:      3,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (fs *FreezeScheduler) Start() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	fs.ticker = time.NewTicker(fs.CheckInterval)
	fs.wg.Add(1)

	go fs.run()

	log.Printf("[Scheduler] Started with check interval: %v", fs.CheckInterval)
}

// Stop stops the scheduler.
func (fs *FreezeScheduler) Stop() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.ticker != nil {
		fs.ticker.Stop()
		close(fs.stop)
		fs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (fs *FreezeScheduler) run() {
	defer fs.wg.Done()

	// Run immediately on start
	fs.checkAndProcess()

	for {
		select {
		case <-fs.ticker.C:
			fs.checkAndProcess()
		case <-fs.stop:
			return
		}
	}
}

func (fs *FreezeScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now().UTC()

	frozenCount := 0
	skippedCount := 0

	// Walk backwards from the most recently ended month.
	for back := 1; back <= fs.Lookback; back++ {
		target := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -back, 0)
		year, month := target.Year(), target.Month()

		schools, err := fs.Fin.ListActiveSchools(ctx, year, month)
		if err != nil {
			log.Printf("[Scheduler] Error listing active schools for %d-%02d: %v", year, month, err)
			continue
		}

		for _, school := range schools {
			existing, err := fs.Fin.GetFrozenSummary(ctx, school, year, month)
			if err != nil {
				log.Printf("[Scheduler] Error checking %s %d-%02d: %v", school, year, month, err)
				continue
			}
			if existing != nil {
				skippedCount++
				continue
			}

			if _, err := fs.Agg.Freeze(ctx, school, year, month, FreezeActor); err != nil {
				// A manual freeze can land between the check and the
				// insert; the insert-once table reports it as frozen.
				if errors.Is(err, ledger.ErrMonthFrozen) {
					skippedCount++
					continue
				}
				log.Printf("[Scheduler] Error freezing %s %d-%02d: %v", school, year, month, err)
				continue
			}
			frozenCount++
			log.Printf("[Scheduler] Froze %s %d-%02d", school, year, month)
		}
	}

	if frozenCount > 0 || skippedCount > 0 {
		log.Printf("[Scheduler] Completed: %d frozen, %d skipped (already closed)", frozenCount, skippedCount)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (fs *FreezeScheduler) RunNow() {
	fs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (fs *FreezeScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(fs.CheckInterval)
}
