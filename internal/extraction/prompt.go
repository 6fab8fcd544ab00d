package extraction

import (
	"encoding/json"
	"strings"

	"github.com/zombor/invoice-ai/internal/invoice"
)

const promptTemplate = `You are an expert at extracting structured information from invoice and receipt text.

Extract the following information from the text below and format it according to the schema.

Text to parse:
{text}

Instructions:
- Extract vendor name, invoice number, date, line items, tax, and total
- Parse dates into YYYY-MM-DD format
- Extract numeric values carefully (remove currency symbols)
- For line items, identify description, quantity, unit price, and amount
- If information is not present, use null
- Calculate subtotal if not explicitly stated
- Assign a confidence score based on text clarity (0.0 to 1.0)

{format_instructions}

Extracted Data:`

const formatPreamble = `The output should be formatted as a JSON instance that conforms to the JSON schema below.

As an example, for the schema {"properties": {"foo": {"title": "Foo", "description": "a list of strings", "type": "array", "items": {"type": "string"}}}, "required": ["foo"]}
the object {"foo": ["bar", "baz"]} is a well-formatted instance of the schema. The object {"properties": {"foo": ["bar", "baz"]}} is not well-formatted.

Here is the output schema:
` + "```\n"

// FormatInstructions renders the InvoiceData schema as instructions for the model
func FormatInstructions() string {
	b, err := json.Marshal(invoice.JSONSchema())
	if err != nil {
		// the schema is a static literal of maps, strings and numbers
		panic(err)
	}
	return formatPreamble + string(b) + "\n```"
}

// BuildPrompt embeds the raw OCR text and the format instructions in the extraction prompt
func BuildPrompt(text string) string {
	r := strings.NewReplacer(
		"{text}", text,
		"{format_instructions}", FormatInstructions(),
	)
	return r.Replace(promptTemplate)
}
