package ocr

import (
	"image"

	"github.com/disintegration/imaging"
)

// maxOCRDimension caps the longest side handed to an engine
const maxOCRDimension = 4000

// Enhance prepares a photographed document for OCR: grayscale, stronger contrast,
// sharpened edges. Oversized phone photos are scaled down first.
func Enhance(src image.Image) image.Image {
	b := src.Bounds()
	if b.Dx() > maxOCRDimension || b.Dy() > maxOCRDimension {
		src = imaging.Fit(src, maxOCRDimension, maxOCRDimension, imaging.Lanczos)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	return imaging.AdjustGamma(img, 1.2)
}
