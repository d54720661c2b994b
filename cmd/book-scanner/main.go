package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/book-scanner/internal/capture"
	"github.com/zombor/book-scanner/internal/catalog"
	"github.com/zombor/book-scanner/internal/library"
	"github.com/zombor/book-scanner/internal/scanning"
	"github.com/zombor/book-scanner/internal/server"
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

	// A missing .env file is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("book-scanner")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "book-scanner.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./scans", "Directory for archived scan images")
		ocrType        = fs.StringLong("ocr", "gemini", "OCR engine: 'gemini', 'ollama' or 'tesseract'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		ocrLanguage    = fs.StringLong("ocr-language", "eng", "Tesseract language")
		googleBooksURL = fs.StringLong("google-books-url", "", "Google Books API base URL override")
		googleBooksKey = fs.StringLong("google-books-key", "", "Google Books API key (optional)")
		openLibraryURL = fs.StringLong("open-library-url", "https://openlibrary.org", "Open Library base URL")
		catalogTimeout = fs.DurationLong("catalog-timeout", catalog.DefaultTimeout, "Time limit for each catalog lookup")
		devicePath     = fs.StringLong("device", "", "Snapshot image file used as the camera (optional)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		trustProxy     = fs.BoolLong("trust-proxy", "Honour X-Forwarded-Proto from a TLS-terminating reverse proxy")
		_              = fs.StringLong("config", "", "Config file (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BOOK_SCANNER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize database
	slog.Info("Initializing database...")
	db, err := library.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize OCR engine based on type
	var recognizer scanning.Recognizer
	switch *ocrType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini OCR...", "model", *geminiModel)
		recognizer, err = scanning.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama OCR...", "url", *ollamaURL, "model", *ollamaModel)
		recognizer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
	case "tesseract":
		slog.Info("Initializing Tesseract OCR...", "language", *ocrLanguage)
		recognizer, err = scanning.NewTesseract(*ocrLanguage)
	default:
		slog.Error("Invalid OCR type", "type", *ocrType, "valid", "gemini, ollama or tesseract")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize OCR", "type", *ocrType, "error", err)
		os.Exit(1)
	}
	defer recognizer.Close()

	// Initialize catalogs
	googleBooks, err := catalog.NewGoogleBooks(ctx, *googleBooksURL, *googleBooksKey)
	if err != nil {
		slog.Error("Failed to initialize Google Books", "error", err)
		os.Exit(1)
	}
	openLibrary := catalog.NewOpenLibrary(*openLibraryURL)
	resolver := catalog.NewResolver(googleBooks, openLibrary, *catalogTimeout)

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := library.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	libraryService := library.NewService(db, store)

	if *devicePath == "" {
		slog.Info("No camera device configured; photo upload and manual entry only")
	}
	sessions := capture.NewManager(capture.Dependencies{
		Device:     capture.NewFileDevice(*devicePath),
		Recognizer: recognizer,
		Resolver:   resolver,
		Library:    libraryService,
		Titles:     openLibrary,
	})
	defer sessions.Shutdown()

	// Initialize server
	basicAuth := server.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	srv := server.NewServer(libraryService, sessions, basicAuth)
	srv.SetTrustProxy(*trustProxy)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}
	if *trustProxy {
		slog.Info("Trusting X-Forwarded-Proto from the proxy")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
