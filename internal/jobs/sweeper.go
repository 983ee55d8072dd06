package jobs

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/calwin/live-speech-translator/pkg/log"
)

// Sweeper reaps jobs whose status channel never attached (upload succeeded
// but the client went away before opening the streaming connection). Jobs
// currently being polled are left alone; their handler owns cleanup.
type Sweeper struct {
	registry *Registry
	ttl      time.Duration
	cron     *cron.Cron
}

func NewSweeper(registry *Registry, ttl time.Duration, cronExpr string) (*Sweeper, error) {
	s := &Sweeper{
		registry: registry,
		ttl:      ttl,
		cron:     cron.New(),
	}
	if _, err := s.cron.AddFunc(cronExpr, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.ttl)
	for _, job := range s.registry.List() {
		if job.State == StatePolling {
			continue
		}
		if job.CreatedAt.After(cutoff) {
			continue
		}
		log.Warn("Reaping abandoned job %s (state %s, created %s)", job.ID, job.State, job.CreatedAt.Format(time.RFC3339))
		s.registry.Cleanup(job.ID)
	}
}
