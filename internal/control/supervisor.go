package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/supervisor/internal/core/config"
	"github.com/vietddude/supervisor/internal/core/worker"
	"github.com/vietddude/supervisor/internal/infra/notify"
	redisclient "github.com/vietddude/supervisor/internal/infra/redis"
	"github.com/vietddude/supervisor/internal/infra/storage"
	"github.com/vietddude/supervisor/internal/infra/storage/filestore"
	"github.com/vietddude/supervisor/internal/infra/storage/memory"
	"github.com/vietddude/supervisor/internal/infra/storage/postgres"
	"github.com/vietddude/supervisor/internal/infra/storage/sqlite"
	"github.com/vietddude/supervisor/internal/recovery/escalation"
	"github.com/vietddude/supervisor/internal/recovery/health"
	"github.com/vietddude/supervisor/internal/recovery/history"
	"github.com/vietddude/supervisor/internal/recovery/loop"
	"github.com/vietddude/supervisor/internal/recovery/orchestrator"
	"github.com/vietddude/supervisor/internal/recovery/retry"
	"github.com/vietddude/supervisor/internal/recovery/snapshot"
)

type (
	Request = orchestrator.Request
	Result  = orchestrator.Result
)

// Supervisor owns the recovery engine and its background workers.
type Supervisor struct {
	cfg *config.AppConfig

	backend     storage.Backend
	db          *postgres.DB
	redisClient *redisclient.Client

	snapshots    *snapshot.Store
	history      *history.Ledger
	loops        *loop.Detector
	desk         *escalation.Desk
	orchestrator *orchestrator.Orchestrator

	healthMon    *health.Monitor
	healthServer *health.Server
	expirer      *worker.Expirer

	cancel context.CancelFunc
	group  *errgroup.Group
	once   sync.Once
	log    *slog.Logger
}

// New builds every component from cfg. Storage that cannot be reached fails
// here rather than on the first incident.
func New(ctx context.Context, cfg *config.AppConfig) (*Supervisor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Supervisor{cfg: cfg, log: slog.Default()}

	// 1. Storage
	if err := s.openStorage(ctx); err != nil {
		s.closeStorage()
		return nil, err
	}

	// 2. Recovery components
	rc := cfg.Recovery
	var err error
	s.snapshots, err = snapshot.Open(ctx, s.backend, snapshot.Options{
		MaxSnapshots: rc.MaxSnapshots,
		Logger:       s.log,
	})
	if err != nil {
		s.closeStorage()
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	s.history = history.NewLedger(s.backend, history.Options{Logger: s.log})

	s.loops = loop.NewDetector(loop.Config{
		WindowSize: rc.LoopWindowSize,
		Threshold:  rc.LoopRepetitionThreshold,
		Logger:     s.log,
	})

	s.desk, err = escalation.OpenDesk(ctx, s.backend, escalation.Options{Logger: s.log})
	if err != nil {
		s.closeStorage()
		return nil, fmt.Errorf("failed to open escalation desk: %w", err)
	}

	// 3. Notification sinks
	var sinks notify.MultiSink
	if cfg.Notify.LogEnabled() {
		sinks = append(sinks, notify.NewLogSink(s.log))
	}
	if cfg.Notify.RedisChannel != "" {
		if s.redisClient == nil {
			s.redisClient, err = redisclient.NewClient(cfg.Storage.Redis)
			if err != nil {
				s.closeStorage()
				return nil, fmt.Errorf("failed to connect notification redis: %w", err)
			}
		}
		pub := redisclient.NewPublisher(s.redisClient, cfg.Notify.RedisChannel)
		sinks = append(sinks, pub)
		s.log.Info("Publishing escalations", "channel", pub.Channel())
	}

	// 4. Orchestrator
	s.orchestrator, err = orchestrator.New(orchestrator.Deps{
		Snapshots: s.snapshots,
		History:   s.history,
		Loops:     s.loops,
		Desk:      s.desk,
		Retry:     retry.NewController(rc.RetryDelays),
		Notifier:  sinks,
		Logger:    s.log,
	}, orchestrator.Config{
		MaxRetries:           rc.MaxRetries,
		RollbackCandidates:   rc.RollbackCandidates,
		RollbackAttempts:     rc.RollbackAttempts,
		LoopDetectionEnabled: rc.LoopDetection(),
		EscalationEnabled:    rc.Escalation(),
	})
	if err != nil {
		s.closeStorage()
		return nil, err
	}

	// 5. Health and workers
	var pinger health.StoragePinger
	if p, ok := s.backend.(storage.Pinger); ok {
		pinger = p
	}
	s.healthMon = health.NewMonitor(s.desk, s.loops, s.snapshots, pinger)
	s.healthServer = health.NewServer(s.healthMon, cfg.Server.Port)
	s.expirer = worker.NewExpirer(s.desk, rc.TicketAutoResolveAfter, s.log)

	return s, nil
}

func (s *Supervisor) openStorage(ctx context.Context) error {
	sc := s.cfg.Storage
	var backend storage.Backend

	switch sc.Driver {
	case config.DriverMemory:
		backend = memory.NewMemoryStorage()
		s.log.Warn("Using memory storage; incidents are lost on restart")
	case config.DriverFile:
		fs, err := filestore.New(sc.Path)
		if err != nil {
			return fmt.Errorf("failed to open file storage: %w", err)
		}
		backend = fs
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, sc.Path)
		if err != nil {
			return fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		backend = db
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, sc.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		s.db = db
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		backend = postgres.NewKVRepo(db)
	case config.DriverRedis:
		client, err := redisclient.NewClient(sc.Redis)
		if err != nil {
			return err
		}
		s.redisClient = client
		backend = redisclient.NewBackend(client)
	default:
		return fmt.Errorf("unknown storage driver %q", sc.Driver)
	}

	s.backend = storage.Instrument(backend, sc.Driver)
	s.log.Info("Storage ready", "driver", sc.Driver)
	return nil
}

func (s *Supervisor) closeStorage() {
	if c, ok := s.backend.(storage.Closer); ok {
		if err := c.Close(); err != nil {
			s.log.Warn("Failed to close storage", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
}

// HandleError runs the recovery policy for one failure.
func (s *Supervisor) HandleError(ctx context.Context, req Request) Result {
	return s.orchestrator.HandleError(ctx, req)
}

// StoredKeys returns the number of durable keys, or errors.ErrUnsupported
// when the backend can't count them.
func (s *Supervisor) StoredKeys(ctx context.Context) (int, error) {
	if c, ok := s.backend.(storage.Counter); ok {
		return c.Count(ctx)
	}
	return 0, errors.ErrUnsupported
}

// Start launches the health server and background workers. It does not block.
func (s *Supervisor) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	g.Go(func() error {
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	if s.expirer.Enabled() {
		g.Go(func() error {
			s.expirer.Start(gctx)
			return nil
		})
	}

	if s.db != nil {
		s.db.StartMetricsCollector(gctx)
	}

	s.log.Info("Supervisor started", "port", s.cfg.Server.Port, "storage", s.cfg.Storage.Driver)
	return nil
}

// Stop shuts the workers down and releases storage.
func (s *Supervisor) Stop(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.log.Info("Stopping Supervisor...")
		if s.cancel != nil {
			s.cancel()
		}
		err = s.healthServer.Stop(ctx)
		if s.group != nil {
			err = errors.Join(err, s.group.Wait())
		}
		s.closeStorage()
	})
	return err
}

// Close releases storage without starting anything. Used by one-shot commands.
func (s *Supervisor) Close() {
	s.once.Do(s.closeStorage)
}

func (s *Supervisor) Snapshots() *snapshot.Store { return s.snapshots }
func (s *Supervisor) History() *history.Ledger   { return s.history }
func (s *Supervisor) Loops() *loop.Detector      { return s.loops }
func (s *Supervisor) Desk() *escalation.Desk     { return s.desk }
func (s *Supervisor) Health() *health.Monitor    { return s.healthMon }
func (s *Supervisor) Config() *config.AppConfig  { return s.cfg }
