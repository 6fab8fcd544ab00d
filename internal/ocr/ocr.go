package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrorPrefix starts the text returned in place of OCR output when extraction fails
const ErrorPrefix = "Error extracting text: "

// Engine recognizes text in a decoded image
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Name() string
}

// Config configures an Extractor
type Config struct {
	// Enhance preprocesses images before recognition.
	Enhance bool
	// FetchTimeout bounds URL downloads; 0 means no limit.
	FetchTimeout time.Duration
	// OCRTimeout bounds a single engine call; 0 means no limit.
	OCRTimeout time.Duration
}

// Extractor turns an invoice image into raw text
type Extractor struct {
	engine Engine
	client *http.Client
	cfg    Config
}

// NewExtractor creates an Extractor using the default HTTP client
func NewExtractor(engine Engine, cfg Config) *Extractor {
	return NewExtractorWithClient(engine, cfg, &http.Client{Timeout: cfg.FetchTimeout})
}

// NewExtractorWithClient creates an Extractor with a custom HTTP client for testing
func NewExtractorWithClient(engine Engine, cfg Config, client *http.Client) *Extractor {
	return &Extractor{engine: engine, client: client, cfg: cfg}
}

// ExtractText never fails: any fetch, decode, or engine error comes back as
// "Error extracting text: <cause>" so later stages always get a string.
func (e *Extractor) ExtractText(ctx context.Context, src Source) string {
	text, err := e.Extract(ctx, src)
	if err != nil {
		slog.Error("Failed to extract text",
			"source", src.String(),
			"engine", e.engine.Name(),
			"error", err,
		)
		return ErrorPrefix + err.Error()
	}
	return text
}

// Extract loads, decodes and recognizes the source, returning trimmed text
func (e *Extractor) Extract(ctx context.Context, src Source) (string, error) {
	start := time.Now()

	data, err := src.load(ctx, e.client)
	if err != nil {
		return "", err
	}

	img, err := decodeImage(data)
	if err != nil {
		return "", err
	}

	if e.cfg.Enhance {
		img = Enhance(img)
	}

	ocrCtx := ctx
	if e.cfg.OCRTimeout > 0 {
		var cancel context.CancelFunc
		ocrCtx, cancel = context.WithTimeout(ctx, e.cfg.OCRTimeout)
		defer cancel()
	}

	text, err := e.engine.Recognize(ocrCtx, img)
	if err != nil {
		return "", fmt.Errorf("running %s: %w", e.engine.Name(), err)
	}
	text = strings.TrimSpace(text)

	slog.Debug("ocr done",
		"source", src.String(),
		"engine", e.engine.Name(),
		"bytes", len(data),
		"text_len", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
