package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-ai/internal/extraction"
	"github.com/zombor/invoice-ai/internal/invoice"
	"github.com/zombor/invoice-ai/internal/ocr"
	"github.com/zombor/invoice-ai/internal/pipeline"
)

// stubEngine returns canned text for every image
type stubEngine struct {
	text  string
	err   error
	calls int
}

func (e *stubEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

func (e *stubEngine) Name() string { return "stub" }

// stubModel returns a canned language model reply
type stubModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *stubModel) Generate(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *stubModel) Name() string { return "stub" }

func (m *stubModel) Close() error { return nil }

func pngBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Integration", func() {
	const invoiceText = "Acme Corp\nInvoice #123\nSubtotal: $100.00\nTax: $9.00\nTotal: $109.00\nDate: 2024-03-15"

	var (
		engine      *stubEngine
		model       *stubModel
		imageServer *ghttp.Server
		apiServer   *ghttp.Server
	)

	BeforeEach(func() {
		engine = &stubEngine{text: invoiceText}
		model = &stubModel{reply: "```json\n" + `{
			"vendor_name": "Acme Corp",
			"invoice_number": "123",
			"date": "2024-03-15",
			"line_items": [{"description": "Widgets", "quantity": 4, "unit_price": 25, "amount": 100}],
			"subtotal": 100,
			"tax_amount": 9,
			"total_amount": 109,
			"currency": "USD",
			"confidence_score": 0.95
		}` + "\n```"}
		imageServer = ghttp.NewServer()
	})

	JustBeforeEach(func() {
		fields, err := extraction.NewExtractor(model, 0)
		Expect(err).NotTo(HaveOccurred())
		validator, err := invoice.NewValidator(invoice.DefaultPolicy())
		Expect(err).NotTo(HaveOccurred())
		text := ocr.NewExtractor(engine, ocr.Config{})
		shared := pipeline.NewShared(func() (*pipeline.Pipeline, error) {
			return pipeline.New(text, fields, validator), nil
		})

		srv := NewServer(func() (Processor, error) {
			return shared.Get()
		})
		apiServer = ghttp.NewServer()
		apiServer.RouteToHandler("GET", "/health", srv.ServeHTTP)
		apiServer.RouteToHandler("POST", "/process-invoice", srv.ServeHTTP)
	})

	AfterEach(func() {
		imageServer.Close()
		apiServer.Close()
	})

	decodeEnvelope := func(resp *http.Response) pipeline.Envelope {
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var envelope pipeline.Envelope
		Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
		return envelope
	}

	upload := func(data []byte) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("image", "acme.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(apiServer.URL()+"/process-invoice", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("should process an uploaded invoice end to end", func() {
		envelope := decodeEnvelope(upload(pngBytes()))

		Expect(envelope.RawText).To(Equal(invoiceText))
		Expect(envelope.InvoiceData.VendorName).To(Equal("Acme Corp"))
		Expect(envelope.InvoiceData.LineItems).To(HaveLen(1))
		Expect(envelope.InvoiceData.LineItems[0].Quantity).To(HaveValue(Equal(4.0)))
		Expect(envelope.InvoiceData.TotalAmount).To(Equal(109.0))
		Expect(envelope.Validation.IsValid).To(BeTrue())
		Expect(envelope.Validation.Warnings).To(BeEmpty())
		Expect(envelope.Validation.RequiresHumanReview).To(BeFalse())
		Expect(envelope.Metadata.Source).To(Equal("acme.png"))
		Expect(envelope.Metadata.RunID).NotTo(BeEmpty())

		Expect(engine.calls).To(Equal(1))
		Expect(model.prompts).To(HaveLen(1))
		Expect(model.prompts[0]).To(ContainSubstring(invoiceText))
	})

	It("should fetch and process an image URL", func() {
		imageServer.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest("GET", "/acme.png"),
			ghttp.RespondWith(http.StatusOK, pngBytes()),
		))

		resp, err := http.PostForm(apiServer.URL()+"/process-invoice", url.Values{"imageUrl": {imageServer.URL() + "/acme.png"}})
		Expect(err).NotTo(HaveOccurred())
		envelope := decodeEnvelope(resp)

		Expect(envelope.RawText).To(Equal(invoiceText))
		Expect(envelope.Metadata.Source).To(Equal(imageServer.URL() + "/acme.png"))
		Expect(imageServer.ReceivedRequests()).To(HaveLen(1))
	})

	When("the image URL cannot be fetched", func() {
		It("should still answer with a fallback envelope", func() {
			imageServer.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "missing"))
			model.err = errors.New("no text to extract")

			resp, err := http.PostForm(apiServer.URL()+"/process-invoice", url.Values{"imageUrl": {imageServer.URL() + "/missing.png"}})
			Expect(err).NotTo(HaveOccurred())
			envelope := decodeEnvelope(resp)

			Expect(envelope.RawText).To(HavePrefix(ocr.ErrorPrefix))
			Expect(envelope.InvoiceData.VendorName).To(Equal(invoice.FallbackVendorName))
			Expect(envelope.Validation.IsValid).To(BeFalse())
			Expect(envelope.Validation.RequiresHumanReview).To(BeTrue())
			Expect(engine.calls).To(BeZero())
		})
	})

	When("the model reply does not match the invoice schema", func() {
		BeforeEach(func() {
			model.reply = `{"vendor_name": "Acme Corp", "confidence_score": 7}`
		})

		It("should fall back and flag the invoice for review", func() {
			envelope := decodeEnvelope(upload(pngBytes()))

			Expect(envelope.InvoiceData).To(Equal(invoice.Fallback()))
			Expect(envelope.Validation.Errors).To(ContainElement("Missing required field: total_amount"))
			Expect(envelope.Validation.RequiresHumanReview).To(BeTrue())
		})
	})

	When("the uploaded file is not an image", func() {
		It("should report the decoding failure in the raw text", func() {
			envelope := decodeEnvelope(upload([]byte("plain text, not an image")))

			Expect(envelope.RawText).To(HavePrefix(ocr.ErrorPrefix))
			Expect(engine.calls).To(BeZero())
		})
	})
})
