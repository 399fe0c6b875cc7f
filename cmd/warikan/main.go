package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/ayumu/warikan/internal/logging"
	"github.com/ayumu/warikan/internal/money"
	"github.com/ayumu/warikan/internal/receipt"
	"github.com/ayumu/warikan/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func newScanner(settings *receipt.Settings) (scanning.Scanner, error) {
	switch settings.Backend {
	case "gemini":
		return scanning.NewGemini(settings.APIKey, settings.Model)
	case "ollama":
		return scanning.NewOllama(settings.Endpoint, settings.Model)
	case "", "none":
		return nil, fmt.Errorf("no backend selected")
	default:
		return nil, fmt.Errorf("unknown scanner backend %q, expected 'gemini' or 'ollama'", settings.Backend)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("warikan")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbPath       = fs.StringLong("db", "warikan.db", "Database file path")
		scannerType  = fs.StringLong("scanner", "", "Scanner backend: 'gemini' or 'ollama' (default: saved settings)")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl)")
		taxRate      = fs.StringLong("tax-rate", "10", "Initial tax rate percentage")
		currency     = fs.StringLong("currency", "JPY", "Display currency (ISO 4217 code)")
		maxBarePrice = fs.IntLong("max-bare-price", receipt.DefaultMaxBarePrice, "Upper bound for accepting an unmarked trailing number as a price")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel     = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("WARIKAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logging.Setup(*logLevel)

	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Flags win; otherwise fall back to settings persisted through the
	// API. Starting without any backend is fine: manual entry still
	// works, scanning just reports it is unconfigured.
	settings := scannerSettings(db, *scannerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
	var scanner scanning.Scanner
	if settings != nil {
		scanner, err = newScanner(settings)
		if err != nil {
			slog.Error("Failed to initialize scanner", "backend", settings.Backend, "error", err)
			os.Exit(1)
		}
		slog.Info("Scanner initialized", "backend", settings.Backend, "model", settings.Model)
		defer scanner.Close()
	} else {
		slog.Warn("No scanner configured; receipt scanning is disabled until settings are saved")
	}

	parser := receipt.NewParser(receipt.ParserConfig{MaxBarePrice: int64(*maxBarePrice)})
	session := receipt.NewSession(db, scanner, parser)
	rate, err := strconv.ParseFloat(*taxRate, 64)
	if err != nil {
		slog.Error("Invalid tax rate", "rate", *taxRate)
		os.Exit(1)
	}
	if err := session.ApplyTaxRate(rate); err != nil {
		slog.Error("Invalid tax rate", "rate", *taxRate)
		os.Exit(1)
	}
	if err := session.SetCurrency(money.Currency(*currency)); err != nil {
		slog.Error("Invalid currency", "currency", *currency)
		os.Exit(1)
	}

	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(session, newScanner, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// scannerSettings resolves the scanner configuration: explicit flags
// first, then whatever was saved through the settings API.
func scannerSettings(db receipt.DB, scannerType, geminiKey, geminiModel, ollamaURL, ollamaModel string) *receipt.Settings {
	switch scannerType {
	case "gemini":
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		return &receipt.Settings{Backend: "gemini", APIKey: apiKey, Model: geminiModel}
	case "ollama":
		return &receipt.Settings{Backend: "ollama", Endpoint: ollamaURL, Model: ollamaModel}
	case "":
		saved, err := db.GetSettings()
		if err != nil {
			slog.Warn("Failed to load saved scanner settings", "error", err)
			return nil
		}
		if saved == nil || saved.Backend == "" {
			return nil
		}
		return saved
	default:
		slog.Error("Invalid scanner type", "type", scannerType, "valid", "gemini or ollama")
		os.Exit(1)
		return nil
	}
}
