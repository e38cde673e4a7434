// sysgate: servicio de control de acceso al sistema (modo mantenimiento).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/auth"
	"github.com/dropDatabas3/sysgate/internal/config"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
	"github.com/dropDatabas3/sysgate/internal/email"
	httpx "github.com/dropDatabas3/sysgate/internal/http"
	authctrl "github.com/dropDatabas3/sysgate/internal/http/controllers/auth"
	systemctrl "github.com/dropDatabas3/sysgate/internal/http/controllers/system"
	"github.com/dropDatabas3/sysgate/internal/metrics"
	"github.com/dropDatabas3/sysgate/internal/notify"
	"github.com/dropDatabas3/sysgate/internal/observability/logger"
	"github.com/dropDatabas3/sysgate/internal/rate"
	"github.com/dropDatabas3/sysgate/internal/store/pg"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:           "sysgate",
		Short:         "Gate de acceso al sistema: modo mantenimiento, sesiones y watch",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "ruta a config.yaml (env CONFIG_PATH)")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(migrateCmd(&cfgPath))
	root.AddCommand(adminCmd(&cfgPath))
	root.AddCommand(maintenanceCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "sysgate"})
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*pg.Store, error) {
	if cfg.Storage.DSN == "" {
		return nil, fmt.Errorf("falta storage.dsn (env STORAGE_DSN)")
	}
	return pg.New(ctx, cfg.Storage.DSN, pg.Tuning{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
}

// ─────────────── serve ───────────────

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servicio HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.Named("main")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			accessRepo := pg.NewAccessRepo(store.Pool())
			userRepo := pg.NewUserRepo(store.Pool())
			roleRepo := pg.NewRoleRepo(store.Pool())
			sessionRepo := pg.NewSessionRepo(store.Pool())

			// Notifier: Redis pub/sub entre procesos, o memoria en single-node.
			var notifier notify.Notifier
			var redisClient *rdb.Client
			if cfg.Redis.Addr != "" {
				redisClient = rdb.NewClient(&rdb.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
				defer redisClient.Close()

				// Tras una reconexión, re-leer el store acota la ventana en la
				// que los gates pueden quedarse con un estado viejo.
				var rn *notify.Redis
				rn = notify.NewRedis(redisClient, cfg.Redis.Channel, func() {
					rctx, cancel := context.WithTimeout(context.Background(), cfg.GateReadTimeout())
					defer cancel()
					if st, err := accessRepo.Get(rctx); err == nil && rn != nil {
						rn.ResyncLocal(st)
					}
				})
				notifier = rn
			} else {
				log.Warn("redis.addr vacío, notifier en memoria (solo single-node)")
				notifier = notify.NewMemory()
			}
			defer notifier.Close()

			if err := metrics.RegisterGate(nil); err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}
			metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Pool: store.Pool})
			if err != nil {
				return fmt.Errorf("register http metrics: %w", err)
			}

			// Estado inicial del gauge.
			if st, err := accessRepo.Get(ctx); err == nil && st.Enabled {
				metrics.MaintenanceEnabled.Set(1)
			}

			if cfg.Auth.JWTSecret == "" {
				if cfg.App.Env != "dev" {
					return fmt.Errorf("falta auth.jwt_secret (env JWT_SECRET)")
				}
				cfg.Auth.JWTSecret = "dev-insecure-secret"
				log.Warn("usando JWT secret de dev")
			}
			issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, "sysgate", cfg.AccessTTL())
			authService := auth.NewService(userRepo, roleRepo, sessionRepo, accessRepo, issuer, cfg.SessionTTL())

			var loginLimiter rate.Limiter
			if cfg.Rate.Enabled {
				if redisClient != nil {
					loginLimiter = rate.NewRedisLimiter(redisClient, cfg.Redis.Prefix+"rl:", cfg.Rate.Login.Limit, cfg.LoginRateWindow())
				} else {
					loginLimiter = rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.LoginRateWindow())
				}
			}

			var notices *email.Notices
			if cfg.SMTP.Host != "" && cfg.SMTP.OpsTo != "" {
				sender := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
				notices = email.NewNotices(sender, splitCSV(cfg.SMTP.OpsTo))
			}

			systemController := systemctrl.New(systemctrl.Deps{
				AccessRepo:  accessRepo,
				Users:       userRepo,
				Roles:       roleRepo,
				Auth:        authService,
				Notifier:    notifier,
				Notices:     notices,
				ReadTimeout: cfg.GateReadTimeout(),
			})
			authController := authctrl.New(authService)

			handler := httpx.NewRouter(httpx.RouterDeps{
				System:             systemController,
				Auth:               authController,
				AuthService:        authService,
				AccessRepo:         accessRepo,
				LoginLimiter:       loginLimiter,
				Metrics:            metricsHandler,
				GateReadTimeout:    cfg.GateReadTimeout(),
				CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
				Ready:              store.Ping,
			})
			server := httpx.NewServer(cfg.Server.Addr, handler)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.Run(gctx) })
			g.Go(func() error { return sessionJanitor(gctx, sessionRepo, log) })

			log.Info("sysgate up", zap.String("addr", cfg.Server.Addr), zap.String("env", cfg.App.Env))
			return g.Wait()
		},
	}
}

// sessionJanitor borra sesiones expiradas cada hora.
func sessionJanitor(ctx context.Context, sessions repository.SessionRepository, log *zap.Logger) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := sessions.DeleteExpired(dctx)
			cancel()
			if err != nil {
				log.Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("expired sessions deleted", zap.Int("count", n))
			}
		}
	}
}

// ─────────────── migrate ───────────────

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("migrations up to date")
			return nil
		},
	}
}

// ─────────────── admin ───────────────

func adminCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operaciones administrativas directas contra el store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "grant <email> <role>",
		Short: "Otorga un rol (user|admin|superadmin) a una cuenta",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			store, err := openStore(c.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			users := pg.NewUserRepo(store.Pool())
			roles := pg.NewRoleRepo(store.Pool())

			u, err := users.GetByEmail(c.Context(), strings.ToLower(args[0]))
			if err != nil {
				return fmt.Errorf("lookup %s: %w", args[0], err)
			}
			if err := roles.Grant(c.Context(), u.ID, args[1]); err != nil {
				return err
			}
			fmt.Printf("role %s granted to %s\n", args[1], u.Email)
			return nil
		},
	})
	return cmd
}

// ─────────────── maintenance ───────────────

func maintenanceCmd(cfgPath *string) *cobra.Command {
	var message string
	var actorEmail string

	cmd := &cobra.Command{
		Use:   "maintenance on|off",
		Short: "Cambia el modo mantenimiento desde la CLI",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return fmt.Errorf("uso: maintenance on|off")
			}

			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			store, err := openStore(c.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			users := pg.NewUserRepo(store.Pool())
			accessRepo := pg.NewAccessRepo(store.Pool())

			actor, err := users.GetByEmail(c.Context(), strings.ToLower(actorEmail))
			if err != nil {
				return fmt.Errorf("actor %s: %w", actorEmail, err)
			}

			var msg *string
			if m := strings.TrimSpace(message); m != "" {
				msg = &m
			}
			st, err := accessRepo.Toggle(c.Context(), repository.ToggleInput{
				Enabled: enabled,
				Message: msg,
				ActorID: actor.ID,
			})
			if err != nil {
				return err
			}

			// Propagar a los procesos conectados, si hay transporte.
			if cfg.Redis.Addr != "" {
				client := rdb.NewClient(&rdb.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
				defer client.Close()
				n := notify.NewRedis(client, cfg.Redis.Channel, nil)
				if err := n.Publish(c.Context(), st); err != nil {
					fmt.Fprintln(os.Stderr, "warning: publish failed:", err)
				}
				_ = n.Close()
			}

			printState(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "mensaje para los usuarios bloqueados")
	cmd.Flags().StringVar(&actorEmail, "actor", "", "email del administrador que ejecuta el cambio")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func printState(st access.State) {
	state := "off"
	if st.Enabled {
		state = "on"
	}
	fmt.Printf("maintenance %s (version %d)\n", state, st.Version)
	if st.Enabled {
		fmt.Printf("message: %s\n", st.MessageOrDefault())
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
