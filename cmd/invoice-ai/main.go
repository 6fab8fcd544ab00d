package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
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

	"github.com/zombor/invoice-ai/internal/extraction"
	"github.com/zombor/invoice-ai/internal/invoice"
	"github.com/zombor/invoice-ai/internal/ocr"
	"github.com/zombor/invoice-ai/internal/pipeline"
	"github.com/zombor/invoice-ai/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	port   int
	source string

	llm         string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string

	ocrEngine       string
	tesseract       string
	tesseractConfig string
	tesseractLang   string
	azureEndpoint   string
	azureKey        string
	enhance         bool

	fetchTimeout time.Duration
	ocrTimeout   time.Duration
	llmTimeout   time.Duration

	policy invoice.Policy
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	var cfg config
	policy := invoice.DefaultPolicy()

	fs := ff.NewFlagSet("invoice-ai")
	fs.IntVar(&cfg.port, 0, "port", 8080, "HTTP server port")
	fs.StringVar(&cfg.source, 0, "source", "", "Process one image path or URL, print the result as JSON and exit")
	fs.StringVar(&cfg.llm, 0, "llm", "gemini", "Language model backend: 'gemini' or 'ollama'")
	fs.StringVar(&cfg.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GOOGLE_API_KEY / GEMINI_API_KEY env var)")
	fs.StringVar(&cfg.geminiModel, 0, "gemini-model", extraction.DefaultGeminiModel, "Google Gemini model name")
	fs.StringVar(&cfg.ollamaURL, 0, "ollama-url", extraction.DefaultOllamaURL, "Ollama API base URL")
	fs.StringVar(&cfg.ollamaModel, 0, "ollama-model", extraction.DefaultOllamaModel, "Ollama model name")
	fs.StringVar(&cfg.ocrEngine, 0, "ocr", "tesseract", "OCR engine: 'tesseract' or 'azure'")
	fs.StringVar(&cfg.tesseract, 0, "tesseract", "tesseract", "tesseract binary name or path")
	fs.StringVar(&cfg.tesseractConfig, 0, "tesseract-config", ocr.DefaultTesseractConfig, "tesseract engine and page segmentation options")
	fs.StringVar(&cfg.tesseractLang, 0, "tesseract-lang", "eng", "tesseract language")
	fs.StringVar(&cfg.azureEndpoint, 0, "azure-endpoint", "", "Azure Computer Vision endpoint")
	fs.StringVar(&cfg.azureKey, 0, "azure-key", "", "Azure Computer Vision API key")
	fs.BoolVarDefault(&cfg.enhance, 0, "enhance", false, "Preprocess images (grayscale, contrast, sharpen) before OCR")
	fs.DurationVar(&cfg.fetchTimeout, 0, "fetch-timeout", 30*time.Second, "Timeout for downloading image URLs")
	fs.DurationVar(&cfg.ocrTimeout, 0, "ocr-timeout", 60*time.Second, "Timeout for one OCR engine call")
	fs.DurationVar(&cfg.llmTimeout, 0, "llm-timeout", 60*time.Second, "Timeout for one language model call")
	fs.Float64Var(&policy.MinConfidence, 0, "min-confidence", invoice.DefaultMinConfidence, "Warn below this confidence score")
	fs.Float64Var(&policy.MaxAmount, 0, "max-amount", invoice.DefaultMaxAmount, "Warn above this total amount")
	fs.IntVar(&policy.MaxWarnings, 0, "max-warnings", invoice.DefaultMaxWarnings, "Require review with more warnings than this")
	fs.Float64Var(&policy.ReviewConfidence, 0, "review-confidence", invoice.DefaultReviewConfidence, "Require review below this confidence score")
	showVersion := fs.BoolLong("version", "Show version information")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_AI"),
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

	cfg.policy = policy
	if _, err := invoice.NewValidator(cfg.policy); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid validation policy: %v\n", err)
		os.Exit(1)
	}
	if cfg.geminiKey == "" {
		cfg.geminiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.geminiKey == "" {
		cfg.geminiKey = os.Getenv("GEMINI_API_KEY")
	}

	if cfg.source != "" {
		os.Exit(runOnce(cfg))
	}

	// The pipeline is built on the first request; a bad LLM configuration surfaces there.
	shared := pipeline.NewShared(func() (*pipeline.Pipeline, error) {
		return buildPipeline(cfg)
	})
	defer shared.Close()

	srv := server.NewServer(func() (server.Processor, error) {
		return shared.Get()
	})

	addr := fmt.Sprintf(":%d", cfg.port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "llm", cfg.llm, "ocr", cfg.ocrEngine)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// runOnce processes cfg.source and prints the envelope
func runOnce(cfg config) int {
	p, err := buildPipeline(cfg)
	if err != nil {
		slog.Error("Failed to initialize pipeline", "error", err)
		return 1
	}
	defer p.Close()

	envelope := p.Process(context.Background(), ocr.ParseSource(cfg.source))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(envelope); err != nil {
		slog.Error("Error encoding result", "error", err)
		return 1
	}
	return 0
}

// buildPipeline wires the OCR engine, language model and validator
func buildPipeline(cfg config) (*pipeline.Pipeline, error) {
	var engine ocr.Engine
	switch cfg.ocrEngine {
	case "tesseract":
		slog.Info("Initializing tesseract OCR...", "binary", cfg.tesseract, "config", cfg.tesseractConfig)
		engine = ocr.NewTesseract(ocr.TesseractConfig{
			Binary:   cfg.tesseract,
			Language: cfg.tesseractLang,
			Options:  cfg.tesseractConfig,
		})
	case "azure":
		slog.Info("Initializing Azure OCR...", "endpoint", cfg.azureEndpoint)
		azure, err := ocr.NewAzure(cfg.azureEndpoint, cfg.azureKey)
		if err != nil {
			return nil, fmt.Errorf("initializing azure ocr: %w", err)
		}
		engine = azure
	default:
		return nil, fmt.Errorf("invalid ocr engine %q: valid engines are tesseract or azure", cfg.ocrEngine)
	}

	var model extraction.Model
	switch cfg.llm {
	case "gemini":
		slog.Info("Initializing Gemini...", "model", cfg.geminiModel)
		gemini, err := extraction.NewGemini(cfg.geminiKey, cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w (set --gemini-key or GOOGLE_API_KEY)", err)
		}
		model = gemini
	case "ollama":
		slog.Info("Initializing Ollama...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		ollama, err := extraction.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		model = ollama
	default:
		return nil, fmt.Errorf("invalid llm %q: valid backends are gemini or ollama", cfg.llm)
	}

	fields, err := extraction.NewExtractor(model, cfg.llmTimeout)
	if err != nil {
		model.Close()
		return nil, err
	}

	text := ocr.NewExtractor(engine, ocr.Config{
		Enhance:      cfg.enhance,
		FetchTimeout: cfg.fetchTimeout,
		OCRTimeout:   cfg.ocrTimeout,
	})

	validator, err := invoice.NewValidator(cfg.policy)
	if err != nil {
		fields.Close()
		return nil, fmt.Errorf("invalid validation policy: %w", err)
	}

	return pipeline.New(text, fields, validator), nil
}
