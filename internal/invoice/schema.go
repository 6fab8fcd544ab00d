package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Field names of InvoiceData as they appear on the wire. These are the contract
// with the language model and must match the json tags on InvoiceData.
const (
	FieldVendorName      = "vendor_name"
	FieldInvoiceNumber   = "invoice_number"
	FieldDate            = "date"
	FieldLineItems       = "line_items"
	FieldSubtotal        = "subtotal"
	FieldTaxAmount       = "tax_amount"
	FieldTotalAmount     = "total_amount"
	FieldCurrency        = "currency"
	FieldVendorAddress   = "vendor_address"
	FieldVendorPhone     = "vendor_phone"
	FieldPaymentMethod   = "payment_method"
	FieldConfidenceScore = "confidence_score"
)

// SchemaFieldOrder lists the InvoiceData properties in declaration order
var SchemaFieldOrder = []string{
	FieldVendorName,
	FieldInvoiceNumber,
	FieldDate,
	FieldLineItems,
	FieldSubtotal,
	FieldTaxAmount,
	FieldTotalAmount,
	FieldCurrency,
	FieldVendorAddress,
	FieldVendorPhone,
	FieldPaymentMethod,
	FieldConfidenceScore,
}

// JSONSchema returns the InvoiceData JSON schema (draft 2020-12 subset) as a generic map.
// It is given to the language model as the output contract and used locally to check replies.
func JSONSchema() map[string]any {
	lineItem := map[string]any{
		"type":        "object",
		"description": "Individual line item in an invoice",
		"properties": map[string]any{
			"description": prop("string", "Item or service description"),
			"quantity":    nullable("number", "Quantity purchased"),
			"unit_price":  nullable("number", "Price per unit"),
			"amount":      prop("number", "Total amount for this line item"),
		},
		"required": []string{"description", "amount"},
	}

	confidence := nullable("number", "Extraction confidence (0-1)")
	confidence["minimum"] = 0.0
	confidence["maximum"] = 1.0

	return map[string]any{
		"title":       "InvoiceData",
		"type":        "object",
		"description": "Structured invoice/receipt data",
		"properties": map[string]any{
			FieldVendorName:    prop("string", "Name of the vendor or merchant"),
			FieldInvoiceNumber: nullable("string", "Invoice or receipt number"),
			FieldDate:          nullable("string", "Invoice date in YYYY-MM-DD format"),
			FieldLineItems: map[string]any{
				"type":        "array",
				"description": "List of purchased items",
				"items":       lineItem,
			},
			FieldSubtotal:        nullable("number", "Subtotal before tax"),
			FieldTaxAmount:       nullable("number", "Total tax amount"),
			FieldTotalAmount:     prop("number", "Final total amount"),
			FieldCurrency:        prop("string", "Currency code"),
			FieldVendorAddress:   nullable("string", "Vendor address"),
			FieldVendorPhone:     nullable("string", "Vendor phone number"),
			FieldPaymentMethod:   nullable("string", "Payment method used"),
			FieldConfidenceScore: confidence,
		},
		"required": []string{FieldVendorName},
	}
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func nullable(typ, description string) map[string]any {
	return map[string]any{"type": []string{typ, "null"}, "description": description}
}

// CompileSchema compiles JSONSchema for validating model output
func CompileSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("invoice.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("adding schema: %w", err)
	}
	schema, err := compiler.Compile("invoice.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return schema, nil
}
