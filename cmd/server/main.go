package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite"

	emailPkg "trainerdesk/internal/adapters/email"
	web "trainerdesk/internal/adapters/http"
	"trainerdesk/internal/adapters/http/middleware"
	"trainerdesk/internal/adapters/storage"
	clientStore "trainerdesk/internal/adapters/storage/client"
	sessionStore "trainerdesk/internal/adapters/storage/session"
	"trainerdesk/internal/adapters/ws"
	"trainerdesk/internal/application/orchestrators"
	"trainerdesk/internal/application/scheduler"
	"trainerdesk/internal/application/timeutil"
	"trainerdesk/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	cfgPath := envOrDefault("TRAINERDESK_CONFIG", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone %q: %v", cfg.Timezone, err)
	}
	normalizer := timeutil.NewNormalizer(loc)

	// WAL mode, foreign keys and a busy timeout keep a single-file SQLite
	// database healthy under concurrent reads.
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to init database: %v", err)
	}

	sessions := sessionStore.NewSQLiteStore(db)
	clients := clientStore.NewSQLiteStore(db)

	// Outbound email: Resend when a key is configured, noop otherwise.
	var sender emailPkg.Sender
	if cfg.Email.APIKey != "" {
		sender = emailPkg.NewResendSender(cfg.Email.APIKey, cfg.Email.From)
		slog.Info("startup", "email", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		slog.Info("startup", "email", "noop — set RESEND_API_KEY for real delivery")
	}

	hub := ws.NewHub()
	go hub.Run()

	controller := scheduler.NewController(scheduler.ControllerDeps{
		Repo:         sessions,
		Normalizer:   normalizer,
		PaddingWeeks: cfg.PaddingWeeks,
		OnChange:     hub.BroadcastChange,
	})

	// Daily reminder sweep.
	if cfg.ReminderCron != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.ReminderCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			result, err := orchestrators.ExecuteSendSessionReminders(ctx, orchestrators.SendRemindersDeps{
				Repo:       sessions,
				Clients:    clients,
				Sender:     sender,
				Normalizer: normalizer,
				From:       cfg.Email.From,
				ReplyTo:    cfg.Email.ReplyTo,
				Now:        time.Now,
			})
			if err != nil {
				slog.Error("reminder_sweep_failed", "error", err.Error())
				return
			}
			slog.Info("reminder_sweep", "date", result.Date, "sent", result.Sent, "skipped", result.Skipped)
		})
		if err != nil {
			log.Fatalf("invalid reminder cron %q: %v", cfg.ReminderCron, err)
		}
		c.Start()
		defer c.Stop()
	}

	router := web.NewRouter(web.Deps{
		Controller: controller,
		Sessions:   sessions,
		Clients:    clients,
		Hub:        hub,
		Normalizer: normalizer,
		Auth:       middleware.NewPasscodeAuth(cfg.PasscodeHash, 30*24*time.Hour),
		Now:        time.Now,
	})

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slog.Info("startup", "version", version, "listen", cfg.Listen, "timezone", loc.String(), "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server stopped: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
