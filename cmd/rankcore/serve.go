// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/rankcore/rankcore/internal/bridge"
	"github.com/rankcore/rankcore/internal/config"
	"github.com/rankcore/rankcore/internal/logging"
	"github.com/rankcore/rankcore/internal/observability"
	"github.com/rankcore/rankcore/internal/propagation"
	redischannel "github.com/rankcore/rankcore/internal/propagation/redis"
	"github.com/rankcore/rankcore/internal/rank"
	rankpg "github.com/rankcore/rankcore/internal/rank/postgres"
)

// shutdownTimeout bounds graceful shutdown of the observability server.
const shutdownTimeout = 10 * time.Second

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// AuthorityFactory builds the external authority adapter. The adapter
	// is platform-specific and linked in by the embedding build; the
	// default returns nil, which leaves the bridge inactive.
	AuthorityFactory func(cfg *config.Config) bridge.ExternalAuthority

	// RefreshHook recomputes a platform permission cache for a player
	// after a remote change was applied without an active bridge.
	RefreshHook propagation.RefreshFunc
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the rank consistency engine",
		Long: `Start the rank consistency engine: load ranks, resolve effective
permissions, subscribe to the shared change channel, and (if configured)
bridge to the external permission authority.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, configFile, nil)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file path")
	cmd.Flags().String("server-id", "", "unique id of this process on the change channel")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")
	cmd.Flags().String("redis-addr", "", "Redis address for the change channel (empty = propagation disabled)")
	cmd.Flags().String("redis-channel", config.DefaultChannel, "Redis pub/sub channel name")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log format (json or text)")

	return cmd
}

// runServe starts the engine with injectable dependencies.
func runServe(ctx context.Context, cmd *cobra.Command, configFile string, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("rankcore", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting rankcore",
		"server_id", cfg.ServerID,
		"bridge_enabled", cfg.Bridge.Enabled)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer pool.Close()

	eng, err := buildEngine(ctx, cfg, pool, deps, logger)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		obs := observability.NewServer(cfg.MetricsAddr, func() bool { return true })
		errCh, startErr := obs.Start()
		if startErr != nil {
			return startErr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := obs.Stop(shutdownCtx); stopErr != nil {
				logger.Error("failed to stop observability server", "error", stopErr)
			}
		}()
		go func() {
			for serveErr := range errCh {
				logger.Error("observability server failed", "error", serveErr)
			}
		}()
	}

	if eng.subscriber != nil {
		go func() {
			if runErr := eng.subscriber.Run(ctx); runErr != nil {
				logger.Error("propagation subscriber stopped", "error", runErr)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down rankcore")
	return nil
}

// engine bundles the wired components for the serve lifetime.
type engine struct {
	manager    *rank.Manager
	subscriber *propagation.Subscriber
	bridge     *bridge.Bridge
}

// buildEngine wires the store, manager, change channel, bridge, and
// subscriber from configuration.
func buildEngine(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, deps *ServeDeps, logger *slog.Logger) (*engine, error) {
	rankRepo := rankpg.NewRankRepository(pool)
	playerRepo := rankpg.NewPlayerRepository(pool)

	store := rank.NewStore(rankRepo)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	rank.ResolveAll(store)

	playerCache := rank.NewPlayerCache()

	var publisher rank.ChangePublisher
	var source propagation.Source
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		channel := redischannel.New(client, cfg.Redis.Channel, logger)
		publisher = channel
		source = channel
	}

	manager := rank.NewManager(rank.ManagerConfig{
		Store:       store,
		Players:     playerRepo,
		PlayerCache: playerCache,
		Broadcaster: rank.NewBroadcaster(),
		Publisher:   publisher,
		ServerID:    cfg.ServerID,
		Logger:      logger,
	})

	var br *bridge.Bridge
	bridgeActive := false
	if cfg.Bridge.Enabled {
		authority := defaultAuthority(deps, cfg)
		if authority == nil {
			logger.Warn("bridge enabled but no external authority adapter is linked in this build")
		} else {
			var err error
			br, err = bridge.New(bridge.BridgeConfig{
				Authority: authority,
				Ranks:     manager,
				Store:     store,
				Sync:      cfg.Bridge,
				Logger:    logger,
			})
			if err != nil {
				return nil, err
			}
			manager.SetBridge(br)
			if err := br.Start(ctx); err != nil {
				return nil, err
			}
			bridgeActive = br.Active()
		}
	}

	var subscriber *propagation.Subscriber
	if source != nil {
		subscriber = propagation.NewSubscriber(propagation.SubscriberConfig{
			Source:       source,
			PlayerCache:  playerCache,
			Store:        store,
			ServerID:     cfg.ServerID,
			BridgeActive: bridgeActive,
			Refresh:      deps.RefreshHook,
			Logger:       logger,
		})
	}

	return &engine{
		manager:    manager,
		subscriber: subscriber,
		bridge:     br,
	}, nil
}

// defaultAuthority resolves the external authority adapter from deps.
func defaultAuthority(deps *ServeDeps, cfg *config.Config) bridge.ExternalAuthority {
	if deps.AuthorityFactory == nil {
		return nil
	}
	return deps.AuthorityFactory(cfg)
}
