package rating

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic rating jobs: draining the database queue and
// a full resync that repairs anything a lost enqueue left stale.
type Scheduler struct {
	cron         *cron.Cron
	queue        *DBQueue
	recalc       *Recalculator
	drainEvery   time.Duration
	resyncSpec   string
	drainTimeout time.Duration
}

// NewScheduler creates a new rating scheduler. queue may be nil when another
// queue backend delivers the jobs; only the resync runs then.
func NewScheduler(queue *DBQueue, recalc *Recalculator, drainEvery time.Duration, resyncSpec string) *Scheduler {
	if drainEvery <= 0 {
		drainEvery = 10 * time.Second
	}
	if resyncSpec == "" {
		resyncSpec = "@hourly"
	}

	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		queue:        queue,
		recalc:       recalc,
		drainEvery:   drainEvery,
		resyncSpec:   resyncSpec,
		drainTimeout: time.Minute,
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	log.Println("Starting rating scheduler...")

	if s.queue != nil {
		if _, err := s.cron.AddFunc("@every "+s.drainEvery.String(), s.drainQueue); err != nil {
			return err
		}
	}

	if _, err := s.cron.AddFunc(s.resyncSpec, s.resync); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Rating scheduler started (drain every %s, resync %s)", s.drainEvery, s.resyncSpec)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	log.Println("Stopping rating scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Rating scheduler stopped")
}

// drainQueue processes pending database jobs.
func (s *Scheduler) drainQueue() {
	ctx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()

	n, err := s.queue.Drain(ctx)
	if err != nil {
		log.Printf("Failed to drain rating queue: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Recalculated ratings for %d properties", n)
	}
}

// resync recalculates every property.
func (s *Scheduler) resync() {
	ctx := context.Background()

	n, err := s.recalc.ResyncAll(ctx)
	if err != nil {
		log.Printf("Rating resync finished with errors (%d updated): %v", n, err)
		return
	}
	log.Printf("Rating resync completed for %d properties", n)
}
