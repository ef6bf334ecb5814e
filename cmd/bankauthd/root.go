package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/internal/config"
	"github.com/MrEthical07/bankauth/internal/logger"
	"github.com/MrEthical07/bankauth/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	envFiles   []string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "bankauthd",
		Short:         "Authentication and session service for SecureBank",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (optional)")
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSweepCmd(a),
		newHashPasswordCmd(a),
		newCreateAdminCmd(a),
		newReportCmd(a),
	)
	return root
}

func (a *app) load() error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "bankauthd",
		Version:     version,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

var version = "dev"

/* ==== DEPENDENCIES ==== */

// deps are the live connections behind an Engine.
type deps struct {
	pool   *pgxpool.Pool
	redis  *redis.Client
	engine *bankauth.Engine
}

func (d *deps) Close() {
	if d.engine != nil {
		d.engine.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

func (a *app) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return postgres.NewPool(ctx, a.cfg.Database.URL, postgres.PoolConfig{MaxConns: a.cfg.Database.MaxConns})
}

// openDeps connects Postgres and Redis and builds the engine on top.
func (a *app) openDeps(ctx context.Context) (*deps, error) {
	engineCfg, err := a.cfg.ToEngineConfig()
	if err != nil {
		return nil, err
	}

	d := &deps{}
	d.pool, err = a.openPool(ctx)
	if err != nil {
		return nil, err
	}

	d.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.redis.Ping(pingCtx).Err(); err != nil {
		d.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	d.engine, err = bankauth.New().
		WithConfig(engineCfg).
		WithRedis(d.redis).
		WithCredentialStore(postgres.NewStore(d.pool)).
		WithRefreshStore(postgres.NewRefreshStore(d.pool)).
		WithAuditSink(bankauth.NewZapSink(a.log.Named("security"))).
		WithLogger(a.log).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return d, nil
}
