package main

import (
	_ "embed"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"billbot/internal/bill"
	"billbot/internal/intake"
	"billbot/internal/mail"
	"billbot/internal/scanning"
	"billbot/internal/server"
	"billbot/internal/telegram"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Local development convenience; missing file is fine
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	fs := ff.NewFlagSet("billbot")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "billbot.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./bills", "Bill image storage directory")
		telegramToken   = fs.StringLong("telegram-token", "", "Telegram bot token (or set BILLBOT_TELEGRAM_TOKEN)")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		defaultCurrency = fs.StringLong("currency", "USD", "Currency assumed when the bill does not state one")
		intakeTTL       = fs.DurationLong("intake-ttl", 15*time.Minute, "How long an unanswered bill waits for a description")
		smtpHost        = fs.StringLong("smtp-host", "", "SMTP server host (email disabled when empty)")
		smtpPort        = fs.IntLong("smtp-port", 587, "SMTP server port")
		smtpUser        = fs.StringLong("smtp-user", "", "SMTP username")
		smtpPass        = fs.StringLong("smtp-pass", "", "SMTP password")
		smtpFrom        = fs.StringLong("smtp-from", "", "From address for report emails")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILLBOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := bill.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner
	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		os.Exit(1)
	}
	slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
	scanner, err := scanning.NewGemini(apiKey, *geminiModel, *defaultCurrency)
	if err != nil {
		slog.Error("Failed to initialize Gemini", "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	storage, err := bill.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize mailer
	var mailer mail.Mailer
	if *smtpHost != "" {
		mailer, err = mail.NewSMTPMailer(*smtpHost, *smtpPort, *smtpUser, *smtpPass, *smtpFrom)
		if err != nil {
			slog.Error("Failed to initialize mailer", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("SMTP not configured, email delivery disabled")
		mailer = mail.Disabled{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Intake store with background expiry sweep
	store := intake.NewStore(*intakeTTL)
	stopSweep := store.StartSweep(time.Minute)
	defer stopSweep()

	billService := bill.NewService(db, scanner, storage)
	controller := intake.NewController(store, scanner, db, storage)

	checks := []server.Check{
		{Name: "database", Ping: func(ctx context.Context) error { return db.Ping() }},
		{Name: "parser", Ping: scanner.Ping},
		{Name: "mail", Ping: mailer.Ping},
	}

	// Telegram bot, if configured
	token := *telegramToken
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if token != "" {
		bot, err := telegram.New(token, controller, billService, storage, mailer)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
			os.Exit(1)
		}
		checks = append(checks, server.Check{Name: "telegram", Ping: bot.Ping})
		go bot.Run(ctx)
	} else {
		slog.Warn("Telegram token not configured, chat surface disabled")
	}

	srv := server.NewServer(billService, storage, mailer, checks)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	cancel()
}
