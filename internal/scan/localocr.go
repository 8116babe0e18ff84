package scan

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// MinOCRConfidence is the mean per-token recognition confidence a local OCR
// pass must reach. Low-confidence OCR text fed to the language model degrades
// extraction accuracy silently, so the bar sits high.
const MinOCRConfidence = 0.85

// LocalOCRTier runs optical character recognition over rasterized pages.
// It is the middle tier, tried when native PDF text is absent.
type LocalOCRTier struct {
	engine        OCREngine
	minChars      int
	minConfidence float64
	logger        *zap.Logger
}

// NewLocalOCRTier creates the local OCR tier
func NewLocalOCRTier(engine OCREngine, logger *zap.Logger) *LocalOCRTier {
	return &LocalOCRTier{
		engine:        engine,
		minChars:      MinTextChars,
		minConfidence: MinOCRConfidence,
		logger:        logger,
	}
}

// Extract recognizes text on every page. Success requires BOTH enough
// characters AND the mean recognition confidence to clear the bar.
func (t *LocalOCRTier) Extract(ctx context.Context, images [][]byte) TierResult {
	var sb strings.Builder
	var confidenceSum float64
	var recognized int

	for i, img := range images {
		if ctx.Err() != nil {
			return TierResult{}
		}
		text, confidence, err := t.engine.Recognize(ctx, img)
		if err != nil {
			t.logger.Warn("OCR failed on page", zap.Int("page", i), zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
		confidenceSum += confidence
		recognized++
	}

	if recognized == 0 {
		return TierResult{}
	}

	text := strings.TrimSpace(sb.String())
	chars := len(text)
	meanConfidence := confidenceSum / float64(recognized)

	if chars < t.minChars || meanConfidence < t.minConfidence {
		t.logger.Debug("Local OCR below thresholds",
			zap.Int("chars", chars),
			zap.Float64("mean_confidence", meanConfidence))
		return TierResult{Confidence: meanConfidence, CharCount: chars}
	}

	return TierResult{
		OK:         true,
		Text:       text,
		Confidence: meanConfidence,
		CharCount:  chars,
	}
}
