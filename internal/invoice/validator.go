package invoice

import (
	"fmt"
	"math"
	"regexp"
)

// Default validation thresholds
const (
	DefaultMinConfidence    = 0.7
	DefaultMaxAmount        = 100000.0
	DefaultMaxWarnings      = 2
	DefaultReviewConfidence = 0.6
	DefaultTotalTolerance   = 0.01
	DefaultDatePattern      = `^\d{4}-\d{2}-\d{2}`
)

// Policy holds the business rules applied by the Validator
type Policy struct {
	// RequiredFields are checked in order; each absent or zero-valued one is an error.
	RequiredFields []string
	// MinConfidence: a confidence score below this is a warning.
	MinConfidence float64
	// MaxAmount: a total above this is a warning.
	MaxAmount float64
	// MaxWarnings: more warnings than this forces human review.
	MaxWarnings int
	// ReviewConfidence: a confidence score below this forces human review.
	ReviewConfidence float64
	// TotalTolerance bounds |subtotal + tax - total|.
	TotalTolerance float64
	// DatePattern must match the start of a present date.
	DatePattern *regexp.Regexp
}

// DefaultPolicy returns the stock rule set
func DefaultPolicy() Policy {
	return Policy{
		RequiredFields:   []string{FieldVendorName, FieldTotalAmount},
		MinConfidence:    DefaultMinConfidence,
		MaxAmount:        DefaultMaxAmount,
		MaxWarnings:      DefaultMaxWarnings,
		ReviewConfidence: DefaultReviewConfidence,
		TotalTolerance:   DefaultTotalTolerance,
		DatePattern:      regexp.MustCompile(DefaultDatePattern),
	}
}

// Validator applies a Policy to extracted invoice data. It makes no external
// calls and keeps no state between calls, so one Validator may be shared.
type Validator struct {
	policy Policy
}

// NewValidator creates a Validator. Start from DefaultPolicy and override what
// differs: RequiredFields, DatePattern and TotalTolerance fall back to the
// defaults when unset, but the numeric thresholds are taken as given and checked.
func NewValidator(policy Policy) (*Validator, error) {
	def := DefaultPolicy()
	if policy.RequiredFields == nil {
		policy.RequiredFields = def.RequiredFields
	}
	if policy.DatePattern == nil {
		policy.DatePattern = def.DatePattern
	}
	if policy.TotalTolerance <= 0 {
		policy.TotalTolerance = def.TotalTolerance
	}

	for _, field := range policy.RequiredFields {
		if !isField(field) {
			return nil, fmt.Errorf("unknown required field %q", field)
		}
	}
	if policy.MaxAmount <= 0 {
		return nil, fmt.Errorf("max amount must be positive, got %v", policy.MaxAmount)
	}
	if policy.MaxWarnings < 0 {
		return nil, fmt.Errorf("max warnings must not be negative, got %d", policy.MaxWarnings)
	}
	if policy.MinConfidence < 0 || policy.MinConfidence > 1 {
		return nil, fmt.Errorf("min confidence must be between 0 and 1, got %v", policy.MinConfidence)
	}
	if policy.ReviewConfidence < 0 || policy.ReviewConfidence > 1 {
		return nil, fmt.Errorf("review confidence must be between 0 and 1, got %v", policy.ReviewConfidence)
	}

	return &Validator{policy: policy}, nil
}

// Policy returns the rules this Validator applies
func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate checks data against the policy. Every rule runs; findings keep rule order.
func (v *Validator) Validate(data InvoiceData) ValidationResult {
	errs := make([]string, 0)
	warnings := make([]string, 0)

	for _, field := range v.policy.RequiredFields {
		if !hasValue(data, field) {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	if data.ConfidenceScore != nil && *data.ConfidenceScore < v.policy.MinConfidence {
		warnings = append(warnings, fmt.Sprintf("Low confidence score: %.2f", *data.ConfidenceScore))
	}

	if data.TotalAmount > v.policy.MaxAmount {
		warnings = append(warnings, fmt.Sprintf("Unusually high amount: %.2f", data.TotalAmount))
	}

	if data.Subtotal != nil && data.TaxAmount != nil {
		calculated := *data.Subtotal + *data.TaxAmount
		if math.Abs(calculated-data.TotalAmount) > v.policy.TotalTolerance {
			errs = append(errs, fmt.Sprintf("Total amount mismatch: %.2f != %.2f", data.TotalAmount, calculated))
		}
	}

	if data.Date != nil && *data.Date != "" && !v.policy.DatePattern.MatchString(*data.Date) {
		errs = append(errs, fmt.Sprintf("Invalid date format: %s", *data.Date))
	}

	review := len(errs) > 0 ||
		len(warnings) > v.policy.MaxWarnings ||
		(data.ConfidenceScore != nil && *data.ConfidenceScore < v.policy.ReviewConfidence)

	return ValidationResult{
		IsValid:             len(errs) == 0,
		Errors:              errs,
		Warnings:            warnings,
		RequiresHumanReview: review,
	}
}

// hasValue reports whether the named field is present and non-zero
func hasValue(data InvoiceData, field string) bool {
	switch field {
	case FieldVendorName:
		return data.VendorName != ""
	case FieldInvoiceNumber:
		return nonEmpty(data.InvoiceNumber)
	case FieldDate:
		return nonEmpty(data.Date)
	case FieldLineItems:
		return len(data.LineItems) > 0
	case FieldSubtotal:
		return nonZero(data.Subtotal)
	case FieldTaxAmount:
		return nonZero(data.TaxAmount)
	case FieldTotalAmount:
		return data.TotalAmount != 0
	case FieldCurrency:
		return data.Currency != ""
	case FieldVendorAddress:
		return nonEmpty(data.VendorAddress)
	case FieldVendorPhone:
		return nonEmpty(data.VendorPhone)
	case FieldPaymentMethod:
		return nonEmpty(data.PaymentMethod)
	case FieldConfidenceScore:
		return nonZero(data.ConfidenceScore)
	default:
		return false
	}
}

func isField(name string) bool {
	for _, field := range SchemaFieldOrder {
		if field == name {
			return true
		}
	}
	return false
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

func nonZero(f *float64) bool {
	return f != nil && *f != 0
}
