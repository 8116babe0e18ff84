package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrExtraction is returned only when every tier has failed
var ErrExtraction = errors.New("extraction failed")

// visionConfidence is the aggregate confidence assigned to vision-tier
// results; the model gives no per-token signal to average.
const visionConfidence = 85.0

// Timeouts bounds each tier's attempt. On timeout the pipeline falls through
// exactly as on failure, so a hung vision call cannot block a scan forever.
type Timeouts struct {
	NativeText time.Duration
	LocalOCR   time.Duration
	Vision     time.Duration
}

// DefaultTimeouts reflect tier cost: native text is local and fast, OCR is
// moderate, vision is network-bound and slowest.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		NativeText: 5 * time.Second,
		LocalOCR:   30 * time.Second,
		Vision:     90 * time.Second,
	}
}

// Request is one scan invocation
type Request struct {
	Data     []byte
	MIMEType string
	// Mode tags the calling surface (upload, chat, rescan) for metrics
	Mode string
	// CorrectionContext carries a previous extraction plus a human correction.
	// It is round-tripped into the model prompt verbatim, never reinterpreted.
	CorrectionContext string
}

// Pipeline orchestrates the extraction cascade: native PDF text, then local
// OCR, then the vision model as terminal fallback.
type Pipeline struct {
	pdf       TextTier
	ocr       ImageTier
	extractor Extractor
	metrics   MetricsSink
	renderPDF func(data []byte, maxPages int) ([][]byte, error)
	timeouts  Timeouts
	maxPages  int
	logger    *zap.Logger
}

// NewPipeline creates a scan pipeline
func NewPipeline(pdf TextTier, ocr ImageTier, extractor Extractor, metrics MetricsSink, timeouts Timeouts, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		pdf:       pdf,
		ocr:       ocr,
		extractor: extractor,
		metrics:   metrics,
		renderPDF: RenderPDFPages,
		timeouts:  timeouts,
		maxPages:  2, // first pages carry the line items; bounds vision cost
		logger:    logger,
	}
}

// Scan runs the cascade and returns a confidence-tagged result
func (p *Pipeline) Scan(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	isPDF := req.MIMEType == "application/pdf"

	// Tier 1: embedded PDF text
	if isPDF {
		tierCtx, cancel := context.WithTimeout(ctx, p.timeouts.NativeText)
		res := p.pdf.Extract(tierCtx, req.Data)
		cancel()

		if res.OK {
			result, err := p.structureText(ctx, req, res.Text, MethodNativeText, 100.0)
			if err == nil {
				p.emitMetric(req.Mode, MethodNativeText, true, 100.0, res.CharCount, start)
				return result, nil
			}
			p.logger.Warn("Native text structuring failed, cascading", zap.Error(err))
		}
	}

	// Rasterize for the remaining tiers
	var images [][]byte
	if isPDF {
		imgs, err := p.renderPDF(req.Data, p.maxPages)
		if err != nil {
			p.logger.Warn("PDF rasterization failed", zap.Error(err))
		} else {
			images = imgs
		}
	} else {
		images = [][]byte{req.Data}
	}

	// Tier 2: local OCR
	if len(images) > 0 {
		tierCtx, cancel := context.WithTimeout(ctx, p.timeouts.LocalOCR)
		res := p.ocr.Extract(tierCtx, images)
		cancel()

		if res.OK {
			confidence := res.Confidence * 100
			result, err := p.structureText(ctx, req, res.Text, MethodLocalOCR, confidence)
			if err == nil {
				p.emitMetric(req.Mode, MethodLocalOCR, true, confidence, res.CharCount, start)
				return result, nil
			}
			p.logger.Warn("OCR text structuring failed, cascading", zap.Error(err))
		}
	}

	// Tier 3: vision model, the terminal fallback
	if len(images) == 0 {
		p.emitMetric(req.Mode, MethodVision, false, 0, 0, start)
		return nil, fmt.Errorf("%w: input could not be rasterized", ErrExtraction)
	}

	tierCtx, cancel := context.WithTimeout(ctx, p.timeouts.Vision)
	extraction, err := p.extractor.ExtractFromImages(tierCtx, images, req.CorrectionContext)
	cancel()
	if err != nil {
		p.emitMetric(req.Mode, MethodVision, false, 0, 0, start)
		return nil, fmt.Errorf("%w: all tiers exhausted: %v", ErrExtraction, err)
	}

	result := assembleResult(extraction, MethodVision, visionConfidence)
	p.emitMetric(req.Mode, MethodVision, true, visionConfidence, 0, start)
	return result, nil
}

// structureText asks the language model to turn tier text into line items
func (p *Pipeline) structureText(ctx context.Context, req Request, text, method string, confidence float64) (*Result, error) {
	modelCtx, cancel := context.WithTimeout(ctx, p.timeouts.Vision)
	defer cancel()

	extraction, err := p.extractor.ExtractFromText(modelCtx, text, req.CorrectionContext)
	if err != nil {
		return nil, err
	}
	return assembleResult(extraction, method, confidence), nil
}

// assembleResult converts the model extraction into a validated scan result
func assembleResult(extraction *Extraction, method string, confidence float64) *Result {
	items := extraction.toItems()
	total := decimal.NewFromFloat(extraction.Total).Round(2)
	subtotal := decimal.NewFromFloat(extraction.Subtotal).Round(2)

	return &Result{
		Items:            items,
		ExtractionMethod: method,
		Confidence:       confidence,
		TotalMatchType:   classifyTotals(items, total, subtotal),
		DetectedTotal:    total,
		DetectedSubtotal: subtotal,
		DetectedTax:      decimal.NewFromFloat(extraction.Tax).Round(2),
		Vendor:           extraction.Vendor,
		ReceiptDate:      extraction.Date,
	}
}

// emitMetric records the attempt on a detached goroutine. A sink failure must
// never fail the scan.
func (p *Pipeline) emitMetric(mode, method string, success bool, confidence float64, charCount int, start time.Time) {
	if p.metrics == nil {
		return
	}
	if mode == "" {
		mode = "scanner"
	}
	elapsed := time.Since(start).Milliseconds()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.metrics.LogScan(ctx, mode, method, success, confidence, charCount, elapsed); err != nil {
			p.logger.Warn("Failed to log scan metric", zap.Error(err))
		}
	}()
}
