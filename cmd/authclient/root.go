package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lithammer/dedent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raine/authclient/internal/client"
	"github.com/raine/authclient/internal/config"
	"github.com/raine/authclient/internal/credential"
	"github.com/raine/authclient/internal/hooks"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var BuildVersion = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "authclient",
	Short: "Authenticated API client",
	Long: strings.TrimSpace(dedent.Dedent(`
		Authenticated API client.

		Stores an access/refresh token pair, attaches the access token to
		every request and renews it transparently when the API answers 401.
		Settings are read from --config, AUTHCLIENT_* environment variables
		and config.env in the user config directory.
	`)),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s\n", BuildVersion)
		},
	})
}

func Execute() error {
	return rootCmd.Execute()
}

// app bundles what a command needs. close releases the store and log file.
type app struct {
	cfg      config.Config
	store    *credential.CachedStore
	client   *client.Client
	registry *prometheus.Registry
	closers  []io.Closer
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}

func newApp(stderr io.Writer) (*app, error) {
	config.LoadEnvFile()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	if err := a.setupLogging(stderr); err != nil {
		return nil, err
	}

	a.store, err = openStore(cfg.Store)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, a.store)

	notifier, err := newNotifier(cfg.Telegram)
	if err != nil {
		a.close()
		return nil, err
	}

	a.client = client.NewClient(client.Options{
		BaseURL:        cfg.BaseURL,
		RefreshPath:    cfg.RefreshPath,
		RefreshTimeout: cfg.RefreshTimeout,
		RequestTimeout: cfg.RequestTimeout,
		Store:          a.store,
		Notifier:       notifier,
		Navigator: hooks.NavigatorFunc(func() {
			fmt.Fprintln(stderr, "Not logged in. Run `authclient login` to sign in again.")
		}),
		Metrics: client.NewMetrics(a.registry),
	})
	a.client.Restore()

	return a, nil
}

func (a *app) setupLogging(stderr io.Writer) error {
	level, err := zerolog.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	consoleWriter := zerolog.ConsoleWriter{Out: stderr}
	if a.cfg.Log.File == "" {
		log.Logger = log.Output(consoleWriter)
		return nil
	}

	logFile, err := os.OpenFile(a.cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.closers = append(a.closers, logFile)

	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	return nil
}

func openStore(cfg config.StoreConfig) (*credential.CachedStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return credential.NewMemoryStore(), nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store, err := credential.Open(credential.NewRedisBackend(rdb, cfg.RedisPrefix))
		if err != nil {
			rdb.Close()
			return nil, err
		}
		return store, nil
	default:
		key, err := credential.DeriveKey(cfg.TokenKey)
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
		backend, err := credential.NewSQLiteBackend(cfg.SQLitePath, key)
		if err != nil {
			return nil, err
		}
		store, err := credential.Open(backend)
		if err != nil {
			backend.Close()
			return nil, err
		}
		log.Debug().Str("dbPath", cfg.SQLitePath).Msg("token store initialized")
		return store, nil
	}
}

func newNotifier(cfg config.TelegramConfig) (hooks.Notifier, error) {
	if cfg.BotToken == "" {
		return hooks.LogNotifier{}, nil
	}
	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	log.Info().Str("username", tg.Self.UserName).Msg("session notifications go to telegram")
	return hooks.NewTelegramNotifier(tg, cfg.ChatID), nil
}
