package scan

import "context"

// Extraction method tags recorded on scan results and metrics
const (
	MethodNativeText = "native_text"
	MethodLocalOCR   = "local_ocr"
	MethodVision     = "vision"
)

// TierResult is the failure-as-data outcome of one extraction tier. A tier
// never errors for "could not read this document"; it reports OK=false and
// the orchestrator cascades to the next tier.
type TierResult struct {
	OK         bool
	Text       string
	Confidence float64 // 0..1, mean per-token recognition confidence where available
	CharCount  int
}

// TextTier extracts plain text straight from the file bytes (native PDF text)
type TextTier interface {
	Extract(ctx context.Context, data []byte) TierResult
}

// ImageTier extracts text from rasterized pages (local OCR)
type ImageTier interface {
	Extract(ctx context.Context, images [][]byte) TierResult
}

// OCREngine is the local optical character recognition collaborator
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (text string, meanConfidence float64, err error)
}

// MetricsSink receives one record per scan attempt, fire-and-forget
type MetricsSink interface {
	LogScan(ctx context.Context, agent, method string, success bool, confidence float64, charCount int, elapsedMs int64) error
}
