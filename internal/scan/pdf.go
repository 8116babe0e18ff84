package scan

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// MinTextChars is the minimum total extracted character count for a text tier
// to count as a success. Below this the document is treated as image-only.
const MinTextChars = 100

// PDFTextTier extracts embedded text from PDF pages via mupdf. It is the
// first, cheapest tier and applies only to PDF input.
type PDFTextTier struct {
	minChars int
	logger   *zap.Logger
}

// NewPDFTextTier creates the native PDF text tier
func NewPDFTextTier(logger *zap.Logger) *PDFTextTier {
	return &PDFTextTier{
		minChars: MinTextChars,
		logger:   logger,
	}
}

// Extract pulls embedded text from every page. Success requires the total
// character count to clear the minimum; image-only PDFs fail here and cascade.
func (t *PDFTextTier) Extract(ctx context.Context, data []byte) TierResult {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		t.logger.Warn("Failed to open PDF for text extraction", zap.Error(err))
		return TierResult{}
	}
	defer doc.Close()

	var sb strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		if ctx.Err() != nil {
			return TierResult{}
		}
		text, err := doc.Text(page)
		if err != nil {
			t.logger.Warn("Failed to extract page text", zap.Int("page", page), zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	chars := len(text)
	if chars < t.minChars {
		t.logger.Debug("Native PDF text below threshold, treating as image-only",
			zap.Int("chars", chars),
			zap.Int("min_chars", t.minChars))
		return TierResult{CharCount: chars}
	}

	return TierResult{
		OK:         true,
		Text:       text,
		Confidence: 1.0, // embedded text is exact
		CharCount:  chars,
	}
}

// RenderPDFPages converts up to maxPages PDF pages to JPEG images for the
// OCR and vision tiers
func RenderPDFPages(data []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > maxPages {
		pages = maxPages
	}

	var images [][]byte
	for page := 0; page < pages; page++ {
		img, err := doc.Image(page)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", page, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", page, err)
		}
		images = append(images, buf.Bytes())
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no pages rendered from PDF")
	}
	return images, nil
}
