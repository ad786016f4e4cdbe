package complaint

import (
	"context"
	"log"
	"time"
)

// Unlocker releases expired claims.
type Unlocker interface {
	UnlockExpiredComplaints(ctx context.Context) (int, error)
}

// Sweeper periodically releases expired claims so abandoned complaints
// become acceptable again.
type Sweeper struct {
	Unlocker Unlocker
	Interval time.Duration
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(u Unlocker, interval time.Duration) *Sweeper {
	return &Sweeper{Unlocker: u, Interval: interval}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Printf("INFO: Lock sweeper started (interval %s).", s.Interval)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			log.Println("INFO: Lock sweeper stopped.")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.Unlocker.UnlockExpiredComplaints(ctx)
	if err != nil {
		log.Printf("ERROR: Lock sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("INFO: Lock sweep released %d expired lock(s).", count)
	}
}
