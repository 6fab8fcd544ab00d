package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-ai/internal/invoice"
	"github.com/zombor/invoice-ai/internal/ocr"
)

// TextExtractor produces raw text for a source. It must not fail; errors are
// reported inside the returned text.
type TextExtractor interface {
	ExtractText(ctx context.Context, src ocr.Source) string
}

// FieldExtractor produces a typed record from raw text. It must not fail; errors
// yield a fallback record.
type FieldExtractor interface {
	Extract(ctx context.Context, text string) invoice.InvoiceData
}

// IDGenerator generates unique IDs for pipeline runs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Metadata describes one pipeline run
type Metadata struct {
	RunID       string    `json:"run_id"`
	ProcessedAt time.Time `json:"processed_at"`
	Source      string    `json:"source"`
}

// Envelope is the result of one pipeline run
type Envelope struct {
	RawText     string                   `json:"raw_text"`
	InvoiceData invoice.InvoiceData      `json:"invoice_data"`
	Validation  invoice.ValidationResult `json:"validation"`
	Metadata    Metadata                 `json:"metadata"`
}

// Pipeline runs OCR, field extraction and validation in sequence. It holds no
// per-run state, so one Pipeline serves concurrent runs as long as its
// extractors do.
type Pipeline struct {
	text        TextExtractor
	fields      FieldExtractor
	validator   *invoice.Validator
	idGenerator IDGenerator
	timeSource  TimeSource
}

// New creates a Pipeline with uuid run IDs and the wall clock
func New(text TextExtractor, fields FieldExtractor, validator *invoice.Validator) *Pipeline {
	return NewWithDeps(text, fields, validator, uuidGenerator{}, defaultTimeSource{})
}

// NewWithDeps creates a Pipeline with custom dependencies for testing
func NewWithDeps(text TextExtractor, fields FieldExtractor, validator *invoice.Validator, idGen IDGenerator, timeSrc TimeSource) *Pipeline {
	return &Pipeline{
		text:        text,
		fields:      fields,
		validator:   validator,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Process runs every stage on src and always returns an envelope. Each stage
// reads only the previous stage's output.
func (p *Pipeline) Process(ctx context.Context, src ocr.Source) *Envelope {
	runID := p.idGenerator.Generate()
	start := p.timeSource.Now()

	rawText := p.text.ExtractText(ctx, src)
	data := p.fields.Extract(ctx, rawText)
	validation := p.validator.Validate(data)

	done := p.timeSource.Now()
	slog.Info("Processed invoice",
		"run_id", runID,
		"source", src.String(),
		"vendor", data.VendorName,
		"is_valid", validation.IsValid,
		"requires_human_review", validation.RequiresHumanReview,
		"errors", len(validation.Errors),
		"warnings", len(validation.Warnings),
		"duration_ms", done.Sub(start).Milliseconds(),
	)

	return &Envelope{
		RawText:     rawText,
		InvoiceData: data,
		Validation:  validation,
		Metadata: Metadata{
			RunID:       runID,
			ProcessedAt: done,
			Source:      src.String(),
		},
	}
}

// Close releases the client handles held by the extractors
func (p *Pipeline) Close() error {
	var errs []error
	for _, stage := range []any{p.text, p.fields} {
		if closer, ok := stage.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// Shared holds one lazily constructed Pipeline
type Shared struct {
	get   func() (*Pipeline, error)
	built atomic.Bool
}

// NewShared returns a Shared that runs build on the first Get. Later calls
// return the same Pipeline, or the same construction error.
func NewShared(build func() (*Pipeline, error)) *Shared {
	s := &Shared{}
	s.get = sync.OnceValues(func() (*Pipeline, error) {
		p, err := build()
		s.built.Store(err == nil)
		return p, err
	})
	return s
}

// Get returns the shared Pipeline, building it on first use
func (s *Shared) Get() (*Pipeline, error) {
	return s.get()
}

// Close closes the Pipeline if one was built. It never triggers a build.
func (s *Shared) Close() error {
	if !s.built.Load() {
		return nil
	}
	p, err := s.get()
	if err != nil {
		return nil
	}
	return p.Close()
}
