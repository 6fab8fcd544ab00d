package invoice

import (
	"encoding/json"
	"reflect"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("JSONSchema", func() {
	It("should describe every InvoiceData field by its json name", func() {
		props := JSONSchema()["properties"].(map[string]any)
		Expect(props).To(HaveLen(len(SchemaFieldOrder)))

		typ := reflect.TypeOf(InvoiceData{})
		for i := 0; i < typ.NumField(); i++ {
			name := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
			Expect(props).To(HaveKey(name))
			Expect(SchemaFieldOrder[i]).To(Equal(name))
		}
	})

	It("should require only the vendor name", func() {
		Expect(JSONSchema()["required"]).To(Equal([]string{FieldVendorName}))
	})

	Describe("CompileSchema", func() {
		validate := func(doc string) error {
			schema, err := CompileSchema()
			Expect(err).NotTo(HaveOccurred())
			var v any
			Expect(json.Unmarshal([]byte(doc), &v)).To(Succeed())
			return schema.Validate(v)
		}

		It("should accept a complete record", func() {
			Expect(validate(`{
				"vendor_name": "Acme Corp",
				"invoice_number": "123",
				"date": "2024-03-15",
				"line_items": [{"description": "Widget", "quantity": 2, "unit_price": 50, "amount": 100}],
				"subtotal": 100, "tax_amount": 9, "total_amount": 109,
				"currency": "USD", "vendor_address": null, "vendor_phone": null,
				"payment_method": "VISA", "confidence_score": 0.92
			}`)).To(Succeed())
		})

		It("should accept nulls for optional fields", func() {
			Expect(validate(`{"vendor_name": "Acme", "subtotal": null, "confidence_score": null}`)).To(Succeed())
		})

		It("should reject a record without a vendor name", func() {
			Expect(validate(`{"total_amount": 10}`)).To(HaveOccurred())
		})

		It("should reject amounts given as strings", func() {
			Expect(validate(`{"vendor_name": "Acme", "total_amount": "$10.00"}`)).To(HaveOccurred())
		})

		It("should reject a confidence score outside [0,1]", func() {
			Expect(validate(`{"vendor_name": "Acme", "confidence_score": 1.5}`)).To(HaveOccurred())
		})

		It("should reject a line item without an amount", func() {
			Expect(validate(`{"vendor_name": "Acme", "line_items": [{"description": "Widget"}]}`)).To(HaveOccurred())
		})
	})
})

var _ = Describe("InvoiceData", func() {
	It("should serialize absent optionals as null and empty items as []", func() {
		b, err := json.Marshal(Fallback())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(MatchJSON(`{
			"vendor_name": "Unknown", "invoice_number": null, "date": null, "line_items": [],
			"subtotal": null, "tax_amount": null, "total_amount": 0, "currency": "USD",
			"vendor_address": null, "vendor_phone": null, "payment_method": null,
			"confidence_score": 0
		}`))
	})

	Describe("Normalize", func() {
		It("should default the currency and line items", func() {
			d := InvoiceData{VendorName: "Acme"}
			d.Normalize()
			Expect(d.Currency).To(Equal(DefaultCurrency))
			Expect(d.LineItems).NotTo(BeNil())
		})

		It("should keep an extracted currency", func() {
			d := InvoiceData{VendorName: "Acme", Currency: "EUR"}
			d.Normalize()
			Expect(d.Currency).To(Equal("EUR"))
		})
	})
})
