package court

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper expires court referrals on a timer
type Sweeper struct {
	service  *Service
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweeper creates a new referral sweeper
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval == 0 {
		interval = time.Minute
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweeper
func (w *Sweeper) Start() {
	log.Info().Dur("interval", w.interval).Msg("Starting court referral sweeper...")
	go w.loop()
}

// Stop stops the sweeper
func (w *Sweeper) Stop() {
	log.Info().Msg("Stopping court referral sweeper...")
	close(w.stopCh)
}

func (w *Sweeper) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := w.service.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to sweep court referrals")
	}
}
