package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// TesseractEngine recognizes text in receipt images through the local
// tesseract installation. It satisfies scan.OCREngine.
type TesseractEngine struct {
	languages []string
	logger    *zap.Logger
}

// NewTesseractEngine creates a local OCR engine. Languages defaults to
// English when empty.
func NewTesseractEngine(languages []string, logger *zap.Logger) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{
		languages: languages,
		logger:    logger,
	}
}

// Recognize runs OCR over one image and reports the recognized text together
// with the mean per-word recognition confidence on a 0..1 scale.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", 0, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", 0, fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("recognition failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		e.logger.Warn("Could not read word confidences", zap.Error(err))
		return text, 0, nil
	}

	var sum float64
	for _, box := range boxes {
		sum += box.Confidence
	}
	confidence := 0.0
	if len(boxes) > 0 {
		// tesseract reports per-word confidence on a 0..100 scale
		confidence = sum / float64(len(boxes)) / 100.0
	}

	return text, confidence, nil
}
