package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/dash/internal/logger"
	"github.com/MrSnakeDoc/dash/internal/store"
)

// DefaultSweepInterval is used when the sweeper is built with a zero interval.
const DefaultSweepInterval = time.Hour

// SweepResult counts what one sweep changed.
type SweepResult struct {
	Disconnected int   `json:"disconnected"`
	Sessions     int64 `json:"sessionsPurged"`
}

// CredentialSweeper periodically disconnects credentials whose token has
// expired and purges stale sessions on stores that do not expire them.
type CredentialSweeper struct {
	repo     store.Repository
	logger   logger.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastRun  time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCredentialSweeper creates a new sweeper
func NewCredentialSweeper(repo store.Repository, log logger.Logger, interval time.Duration) *CredentialSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &CredentialSweeper{
		repo:     repo,
		logger:   log,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a sweep immediately, then every interval until Stop or ctx is done.
func (s *CredentialSweeper) Start(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Warn("initial credential sweep failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("credential sweep failed",
						logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the periodic sweep. Safe to call more than once.
func (s *CredentialSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// LastRun returns when the last sweep finished, zero if never.
func (s *CredentialSweeper) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Sweep runs one pass. Concurrent calls are serialized.
func (s *CredentialSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var res SweepResult

	creds, err := s.repo.ListAllCredentials(ctx)
	if err != nil {
		return res, err
	}

	for _, c := range creds {
		if !c.Connected || !c.Expired(now) {
			continue
		}

		// The listed copy may be stale; the store re-checks before writing.
		changed, err := s.repo.DisconnectExpiredCredential(ctx, c.UserID, c.Service, now)
		if err != nil {
			s.logger.Warn("failed to disconnect expired credential",
				logger.Int64("user_id", c.UserID),
				logger.String("service", string(c.Service)),
				logger.Error(err))
			continue
		}
		if !changed {
			continue
		}

		s.logger.Info("disconnected expired credential",
			logger.Int64("user_id", c.UserID),
			logger.String("service", string(c.Service)),
			logger.Time("expired_at", *c.ExpiresAt))
		res.Disconnected++
	}

	if purger, ok := s.repo.(store.SessionPurger); ok {
		n, err := purger.DeleteExpiredSessions(ctx, now)
		if err != nil {
			s.logger.Warn("failed to purge expired sessions",
				logger.Error(err))
		}
		res.Sessions = n
	}

	s.lastRun = now

	if res.Disconnected > 0 || res.Sessions > 0 {
		s.logger.Info("credential sweep completed",
			logger.Int("disconnected", res.Disconnected),
			logger.Int64("sessions_purged", res.Sessions))
	} else {
		s.logger.Debug("nothing to sweep")
	}

	return res, nil
}
