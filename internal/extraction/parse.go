package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/invoice-ai/internal/invoice"
)

// extractJSONObject strips markdown fences and any prose around the outermost JSON object
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}

	return text[startIdx : endIdx+1], nil
}

// parseInvoiceJSON checks a model reply against the schema and decodes it
func parseInvoiceJSON(text string, schema *jsonschema.Schema) (invoice.InvoiceData, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return invoice.InvoiceData{}, err
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return invoice.InvoiceData{}, fmt.Errorf("unmarshaling json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return invoice.InvoiceData{}, fmt.Errorf("json does not match schema: %w", err)
	}

	var data invoice.InvoiceData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return invoice.InvoiceData{}, fmt.Errorf("decoding invoice data: %w", err)
	}

	data.VendorName = strings.TrimSpace(data.VendorName)
	data.Normalize()
	return data, nil
}
