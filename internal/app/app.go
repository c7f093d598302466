// Package app wires the engine's services for the API, the worker and the
// operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/domain/audit"
	"github.com/citywatch/citywatch-api/internal/domain/court"
	"github.com/citywatch/citywatch-api/internal/domain/enforcement"
	"github.com/citywatch/citywatch-api/internal/domain/escalation"
	"github.com/citywatch/citywatch-api/internal/domain/moderation"
	"github.com/citywatch/citywatch-api/internal/domain/notification"
	"github.com/citywatch/citywatch-api/internal/domain/reputation"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/controlplane"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
	"github.com/citywatch/citywatch-api/internal/pkg/eventbus"
	"github.com/citywatch/citywatch-api/internal/pkg/jwt"
	"github.com/citywatch/citywatch-api/internal/pkg/storage"
)

const ruleCacheSize = 256

// App holds the wired engine
type App struct {
	Config *config.Config
	Policy *config.Policy

	db    *sqlx.DB
	redis *redis.Client
	Bus   eventbus.Bus
	JWT   *jwt.Service

	Audit      *audit.Service
	Reports    *moderation.Service
	Escalation *escalation.Service
	Reputation *reputation.Service
	Actions    *enforcement.Service
	Court      *court.Service

	Dispatcher *enforcement.Dispatcher
	Sweeper    *court.Sweeper
	Hub        *notification.Hub
	Notifier   *notification.Dispatcher
}

// New connects the configured backends and builds every service
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	scales, err := reputation.NewScales(policy)
	if err != nil {
		return nil, fmt.Errorf("policy scales: %w", err)
	}

	a := &App{Config: cfg, Policy: policy, JWT: jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)}

	if !cfg.UsesMemoryStore() {
		a.db, err = database.NewPostgres(ctx, cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: cfg.DatabaseMaxConns})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}
	if cfg.EventBus == "redis" || !cfg.UsesMemoryStore() {
		a.redis, err = database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	if cfg.EventBus == "redis" && a.redis != nil {
		a.Bus = eventbus.NewRedisBus(a.redis)
	} else {
		a.Bus = eventbus.NewMemoryBus()
	}

	archive, err := newArchive(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		tx             database.Transactor
		auditRepo      audit.Repository
		reportRepo     moderation.Repository
		escalationRepo escalation.Repository
		reputationRepo reputation.Repository
		actionRepo     enforcement.Repository
		courtRepo      court.Repository
	)
	if a.db != nil {
		tx = database.NewTransactor(a.db)
		auditRepo = audit.NewRepository(a.db)
		reportRepo = moderation.NewRepository(a.db)
		escalationRepo = escalation.NewRepository(a.db)
		reputationRepo = reputation.NewRepository(a.db)
		actionRepo = enforcement.NewRepository(a.db)
		courtRepo = court.NewRepository(a.db)
	} else {
		tx = database.NewMemTransactor()
		auditRepo = audit.NewMemRepository()
		reportRepo = moderation.NewMemRepository()
		escalationRepo = escalation.NewMemRepository()
		reputationRepo = reputation.NewMemRepository()
		actionRepo = enforcement.NewMemRepository()
		courtRepo = court.NewMemRepository()
	}

	var ruleCache escalation.RuleCache
	if a.redis != nil {
		ruleCache = escalation.NewRedisRuleCache(a.redis, cfg.RuleCacheTTL)
	} else {
		ruleCache = escalation.NewMemRuleCache(ruleCacheSize, cfg.RuleCacheTTL)
	}

	a.Audit = audit.NewService(auditRepo, a.Bus, archive)
	a.Reports = moderation.NewService(reportRepo, a.Bus, tx)
	a.Escalation = escalation.NewService(escalationRepo, ruleCache, a.Audit, tx)
	a.Reputation = reputation.NewService(reputationRepo, scales, a.Audit, a.Bus, tx)
	a.Reports.SetCaseRecorder(a.Reputation)
	a.Actions = enforcement.NewService(actionRepo, a.Reports, a.Escalation, a.Reputation, a.Audit, a.Bus, tx, policy.ManualPoints)
	a.Court = court.NewService(courtRepo, a.Actions, a.Reports, a.Bus, tx, court.Options{
		TTL:           cfg.CourtReferralTTL,
		TimeoutPolicy: cfg.CourtTimeoutPolicy,
	})

	a.Dispatcher = enforcement.NewDispatcher(actionRepo, newEnforcer(cfg), enforcement.DispatcherConfig{
		Interval:    cfg.EnforcementPollInterval,
		BatchSize:   cfg.EnforcementBatchSize,
		MaxAttempts: cfg.EnforcementMaxAttempts,
	})
	a.Actions.SetDispatcher(a.Dispatcher)
	a.Sweeper = court.NewSweeper(a.Court, cfg.CourtSweepInterval)

	a.Hub = notification.NewHub()
	a.Notifier = notification.NewDispatcher(a.Bus, a.Hub, newSender(cfg))

	if n, err := a.Escalation.ImportRules(ctx, access.System(), policy.EscalationRules, true); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed escalation rules: %w", err)
	} else if n > 0 {
		log.Info().Int("rules", n).Msg("Seeded escalation rules from policy")
	}

	return a, nil
}

func newArchive(ctx context.Context, cfg *config.Config) (audit.Archive, error) {
	if cfg.AuditBucket != "" {
		archive, err := storage.NewS3Archive(ctx, storage.S3Config{
			Bucket:    cfg.AuditBucket,
			Endpoint:  cfg.AuditS3Endpoint,
			Region:    cfg.AuditS3Region,
			AccessKey: cfg.AuditS3AccessKey,
			SecretKey: cfg.AuditS3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		return archive, nil
	}
	if cfg.AuditArchiveDir == "" {
		return nil, nil
	}
	archive, err := storage.NewLocalArchive(cfg.AuditArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("audit archive: %w", err)
	}
	return archive, nil
}

func newEnforcer(cfg *config.Config) controlplane.Enforcer {
	if cfg.VideoControlURL == "" && cfg.AccountControlURL == "" {
		log.Warn().Msg("Control plane URLs not configured, enforcement commands will only be logged")
		return controlplane.LogEnforcer{}
	}
	client := controlplane.NewHTTPClient(cfg.ControlPlaneTimeout)
	return controlplane.NewHTTPEnforcer(cfg.VideoControlURL, cfg.AccountControlURL, cfg.ControlPlaneToken, client)
}

func newSender(cfg *config.Config) notification.Sender {
	if cfg.NotifyWebhookURL == "" {
		return notification.LogSender{}
	}
	return notification.NewWebhookSender(cfg.NotifyWebhookURL, controlplane.NewHTTPClient(10*time.Second))
}

// Health pings postgres and redis when they are configured
func (a *App) Health(ctx context.Context) (map[string]string, bool) {
	return database.Health(ctx, a.db, a.redis)
}

// RunWorkers runs the outbox dispatcher and the referral sweeper until
// ctx is done.
func (a *App) RunWorkers(ctx context.Context) error {
	a.Dispatcher.Start()
	a.Sweeper.Start()
	<-ctx.Done()
	a.Sweeper.Stop()
	a.Dispatcher.Stop()
	return nil
}

// RunFeed runs the staff feed hub and the notification dispatcher until
// ctx is done.
func (a *App) RunFeed(ctx context.Context) error {
	go a.Hub.Run(ctx)
	return a.Notifier.Run(ctx)
}

// Close releases backend connections
func (a *App) Close() {
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}
	database.CloseRedis(a.redis)
	database.ClosePostgres(a.db)
}
