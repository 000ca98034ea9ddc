package consultation

import (
	"context"
	"time"

	"astrochat/backend/internal/config"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lease grants exclusive use of a key for a while, so that only one process in a
// deployment sweeps per interval.
type Lease interface {
	AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

// Sweeper periodically expires overdue pending requests.
type Sweeper struct {
	broker   *Broker
	lease    Lease
	clock    clock.Clock
	interval time.Duration
	owner    string
	logger   *zap.Logger
}

func NewSweeper(broker *Broker, lease Lease, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Sweeper {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		broker:   broker,
		lease:    lease,
		clock:    clk,
		interval: interval,
		owner:    uuid.New().String(),
		logger:   logger.Named("sweeper"),
	}
}

// Run запускає цикл очищення до скасування ctx. A zero interval disables it.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("sweeper disabled")
		return
	}
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep if this process wins the lease for the current interval.
func (s *Sweeper) Tick(ctx context.Context) int64 {
	if s.lease != nil {
		// Трохи менше за інтервал, щоб наступний тік міг знову взяти lease.
		ok, err := s.lease.AcquireLease(ctx, config.SweepLeaseKey, s.owner, s.interval*9/10)
		if err != nil {
			s.logger.Warn("failed to acquire sweep lease", zap.Error(err))
			return 0
		}
		if !ok {
			return 0
		}
	}

	n, err := s.broker.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return 0
	}
	return n
}
