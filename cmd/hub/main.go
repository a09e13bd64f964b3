package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/alerts"
	"github.com/nhle/epikom-hub/internal/app"
	"github.com/nhle/epikom-hub/internal/auth"
	"github.com/nhle/epikom-hub/internal/credential"
	"github.com/nhle/epikom-hub/internal/files"
	"github.com/nhle/epikom-hub/internal/logging"
	"github.com/nhle/epikom-hub/internal/mailer"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/notify"
	"github.com/nhle/epikom-hub/internal/posts"
	"github.com/nhle/epikom-hub/internal/realtime"
	"github.com/nhle/epikom-hub/internal/reminder"
	"github.com/nhle/epikom-hub/internal/storage"
	"github.com/nhle/epikom-hub/internal/store"
	appsync "github.com/nhle/epikom-hub/internal/sync"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	configPath := flag.String("config", model.DefaultConfigPath(), "Path to hub config file")
	initConfig := flag.Bool("init-config", false, "Write a config file with default values and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("epikom-hub %s (%s)\n", version, commit)
		return
	}

	if *initConfig {
		if err := writeDefaultConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "epikom-hub: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "epikom-hub: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Info("starting", zap.String("version", version), zap.String("config", configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vault, err := credential.Open()
	if err != nil {
		return err
	}

	origin := uuid.New().String()
	fanout := realtime.NewFanout()
	storeOpts := []store.Option{
		store.WithFanout(fanout),
		store.WithOrigin(origin),
		store.WithLogger(log.Named("store")),
	}

	if addr := cfg.Realtime.RedisAddr; addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Realtime.RedisPassword,
			DB:       cfg.Realtime.RedisDB,
		})
		defer rdb.Close()

		bridge := realtime.NewRedisBridge(rdb, cfg.Realtime.RedisChannel, origin, fanout, log.Named("bridge"))
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("connecting to redis %s: %w", addr, err)
		}
		defer bridge.Close()
		storeOpts = append(storeOpts, store.WithPublisher(bridge))
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path, storeOpts...)
	if err != nil {
		return err
	}
	defer db.Close()

	feeds := realtime.NewRegistry(db.Feed(), realtime.WithLogger(log.Named("realtime")))
	defer feeds.Close()

	if cfg.Session.Email == "" {
		return errors.New("no session email configured; set session.email or EPIKOMHUB_SESSION_EMAIL")
	}
	session := auth.NewSession(db, log.Named("auth"))
	actor, err := session.SignIn(ctx, cfg.Session.Email)
	if err != nil {
		return fmt.Errorf("signing in as %s: %w", cfg.Session.Email, err)
	}

	aggOpts := []alerts.Option{alerts.WithLogger(log.Named("alerts"))}
	mail, err := buildMailer(cfg, vault, log.Named("mailer"))
	if err != nil {
		return err
	}
	if mail != nil {
		aggOpts = append(aggOpts, alerts.WithMailer(mail))
	}
	aggregator := alerts.NewAggregator(db, aggOpts...)

	key, err := vault.SigningKey()
	if err != nil {
		return err
	}
	bucket, err := storage.NewLocalBucket(cfg.Storage.Root, cfg.Storage.Bucket, key)
	if err != nil {
		return err
	}
	defer bucket.Close()
	fileSvc := files.NewService(db, bucket,
		files.WithURLTTL(time.Duration(cfg.Storage.SignedURLTTLSec)*time.Second),
		files.WithLogger(log.Named("files")),
	)

	inbox := notify.NewSync(db, feeds, actor.ID, log.Named("notify"))
	defer inbox.Close()
	if err := inbox.Subscribe(ctx); err != nil {
		log.Warn("subscribing to notifications", zap.Error(err))
	}
	if err := inbox.Initialize(ctx); err != nil {
		log.Warn("loading notifications", zap.Error(err))
	}

	sweeper, err := appsync.New(cfg.Reminders.Schedule, aggregator,
		posts.NewNotifier(db, log.Named("posts")), log.Named("sweep"))
	if err != nil {
		return err
	}

	root := app.New(app.Deps{
		Store:     db,
		Feeds:     feeds,
		Actor:     *actor,
		Alerts:    aggregator,
		Inbox:     inbox,
		Reminders: reminder.NewService(db, log.Named("reminder")),
		Files:     fileSvc,
		Sweeper:   sweeper,
		Log:       log,
	})

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running ui: %w", err)
	}
	log.Info("stopped")
	return nil
}

// writeDefaultConfig refuses to overwrite an existing file.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}
	return model.SaveConfig(path, cfg)
}

// buildMailer returns nil when email reminders are off or no SMTP host is
// configured.
func buildMailer(cfg *model.AppConfig, vault *credential.Vault, log *zap.Logger) (*mailer.Mailer, error) {
	if !cfg.Reminders.EmailEnabled || cfg.SMTP.Host == "" {
		return nil, nil
	}

	smtpPass, err := vault.Lookup(credential.KeySMTPPassword)
	if err != nil {
		return nil, err
	}
	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: smtpPass,
		TLS:      cfg.SMTP.TLS,
	})

	var archive mailer.Archiver
	if cfg.IMAP.Host != "" {
		imapPass, err := vault.Lookup(credential.KeyIMAPPassword)
		if err != nil {
			return nil, err
		}
		archive = mailer.NewIMAPArchiver(mailer.IMAPConfig{
			Host:        cfg.IMAP.Host,
			Port:        cfg.IMAP.Port,
			Username:    cfg.IMAP.Username,
			Password:    imapPass,
			TLS:         cfg.IMAP.TLS,
			SentMailbox: cfg.IMAP.SentMailbox,
		})
	}

	from := cfg.SMTP.From
	if from == "" {
		from = cfg.SMTP.Username
	}
	return mailer.New(from, sender, archive, log), nil
}
