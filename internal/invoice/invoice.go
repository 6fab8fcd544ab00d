package invoice

// DefaultCurrency is used when the extracted record carries no currency code
const DefaultCurrency = "USD"

// FallbackVendorName is the vendor name of the record produced when extraction fails
const FallbackVendorName = "Unknown"

// LineItem is one purchased item, in document order
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      float64  `json:"amount"`
}

// InvoiceData is the structured record extracted from invoice or receipt text.
// Optional fields are pointers so that "absent" and "zero" stay distinguishable.
type InvoiceData struct {
	VendorName      string     `json:"vendor_name"`
	InvoiceNumber   *string    `json:"invoice_number"`
	Date            *string    `json:"date"` // expected YYYY-MM-DD, checked by the Validator
	LineItems       []LineItem `json:"line_items"`
	Subtotal        *float64   `json:"subtotal"`
	TaxAmount       *float64   `json:"tax_amount"`
	TotalAmount     float64    `json:"total_amount"`
	Currency        string     `json:"currency"`
	VendorAddress   *string    `json:"vendor_address"`
	VendorPhone     *string    `json:"vendor_phone"`
	PaymentMethod   *string    `json:"payment_method"`
	ConfidenceScore *float64   `json:"confidence_score"`
}

// ValidationResult is the verdict of the Validator for one InvoiceData
type ValidationResult struct {
	IsValid             bool     `json:"is_valid"`
	Errors              []string `json:"errors"`
	Warnings            []string `json:"warnings"`
	RequiresHumanReview bool     `json:"requires_human_review"`
}

// Fallback returns the record used in place of a failed extraction
func Fallback() InvoiceData {
	return InvoiceData{
		VendorName:      FallbackVendorName,
		LineItems:       []LineItem{},
		TotalAmount:     0.0,
		Currency:        DefaultCurrency,
		ConfidenceScore: Float(0.0),
	}
}

// Normalize fills in the defaults a decoded record may be missing
func (d *InvoiceData) Normalize() {
	if d.Currency == "" {
		d.Currency = DefaultCurrency
	}
	if d.LineItems == nil {
		d.LineItems = []LineItem{}
	}
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s
func String(s string) *string {
	return &s
}
