package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/invoice-ai/internal/invoice"
)

// Extractor turns raw OCR text into InvoiceData using a language model
type Extractor struct {
	model     Model
	schema    *jsonschema.Schema
	schemaDoc map[string]any
	timeout   time.Duration
}

// NewExtractor creates an Extractor. timeout bounds each model call; 0 means no limit.
func NewExtractor(model Model, timeout time.Duration) (*Extractor, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	schema, err := invoice.CompileSchema()
	if err != nil {
		return nil, fmt.Errorf("preparing invoice schema: %w", err)
	}
	return &Extractor{
		model:     model,
		schema:    schema,
		schemaDoc: invoice.JSONSchema(),
		timeout:   timeout,
	}, nil
}

// Extract never fails: when the model call or parsing fails it returns invoice.Fallback()
func (e *Extractor) Extract(ctx context.Context, text string) invoice.InvoiceData {
	data, err := e.ExtractFields(ctx, text)
	if err != nil {
		slog.Error("Failed to extract invoice fields",
			"model", e.model.Name(),
			"text_len", len(text),
			"error", err,
		)
		return invoice.Fallback()
	}
	return data
}

// ExtractFields asks the model for the invoice fields and validates the reply
func (e *Extractor) ExtractFields(ctx context.Context, text string) (invoice.InvoiceData, error) {
	start := time.Now()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	reply, err := e.model.Generate(ctx, BuildPrompt(text), e.schemaDoc)
	if err != nil {
		return invoice.InvoiceData{}, fmt.Errorf("calling %s: %w", e.model.Name(), err)
	}

	data, err := parseInvoiceJSON(reply, e.schema)
	if err != nil {
		return invoice.InvoiceData{}, fmt.Errorf("parsing invoice data: %w", err)
	}

	slog.Debug("llm extraction done",
		"model", e.model.Name(),
		"vendor", data.VendorName,
		"line_items", len(data.LineItems),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

// Close releases the model's client
func (e *Extractor) Close() error {
	return e.model.Close()
}
