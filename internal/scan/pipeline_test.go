package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTextTier struct {
	result TierResult
	calls  int
}

func (f *fakeTextTier) Extract(_ context.Context, _ []byte) TierResult {
	f.calls++
	return f.result
}

type fakeImageTier struct {
	result TierResult
	calls  int
}

func (f *fakeImageTier) Extract(_ context.Context, _ [][]byte) TierResult {
	f.calls++
	return f.result
}

type fakeExtractor struct {
	extraction  *Extraction
	err         error
	textCalls   int
	imageCalls  int
	corrections []string
}

func (f *fakeExtractor) ExtractFromText(_ context.Context, _ string, correction string) (*Extraction, error) {
	f.textCalls++
	f.corrections = append(f.corrections, correction)
	return f.extraction, f.err
}

func (f *fakeExtractor) ExtractFromImages(_ context.Context, _ [][]byte, correction string) (*Extraction, error) {
	f.imageCalls++
	f.corrections = append(f.corrections, correction)
	return f.extraction, f.err
}

func goodExtraction() *Extraction {
	return &Extraction{
		LineItems: []ExtractedItem{
			{Description: "Rebar #4", Amount: 80.00},
			{Description: "Tie wire", Amount: 40.00},
		},
		Total:  120.00,
		Vendor: "Steel Supply Co",
		Date:   "2026-08-20",
	}
}

func newTestPipeline(pdf TextTier, ocr ImageTier, extractor Extractor) *Pipeline {
	p := NewPipeline(pdf, ocr, extractor, nil, DefaultTimeouts(), zap.NewNop())
	// Fake rasterization keeps the tests independent of mupdf
	p.renderPDF = func(data []byte, maxPages int) ([][]byte, error) {
		return [][]byte{{0x01}}, nil
	}
	return p
}

func TestScanUsesNativeTextFirst(t *testing.T) {
	pdf := &fakeTextTier{result: TierResult{OK: true, Text: "receipt text", Confidence: 1.0, CharCount: 500}}
	ocr := &fakeImageTier{}
	extractor := &fakeExtractor{extraction: goodExtraction()}
	p := newTestPipeline(pdf, ocr, extractor)

	result, err := p.Scan(context.Background(), Request{Data: []byte("pdf"), MIMEType: "application/pdf"})
	require.NoError(t, err)

	assert.Equal(t, MethodNativeText, result.ExtractionMethod)
	assert.Equal(t, 100.0, result.Confidence)
	assert.Equal(t, TotalMatchTotal, result.TotalMatchType)
	assert.Len(t, result.Items, 2)

	// Later tiers must not be touched
	assert.Equal(t, 1, pdf.calls)
	assert.Zero(t, ocr.calls)
	assert.Equal(t, 1, extractor.textCalls)
	assert.Zero(t, extractor.imageCalls)
}

func TestScanFallsBackToLocalOCR(t *testing.T) {
	pdf := &fakeTextTier{result: TierResult{OK: false}}
	ocr := &fakeImageTier{result: TierResult{OK: true, Text: "ocr text", Confidence: 0.92, CharCount: 300}}
	extractor := &fakeExtractor{extraction: goodExtraction()}
	p := newTestPipeline(pdf, ocr, extractor)

	result, err := p.Scan(context.Background(), Request{Data: []byte("pdf"), MIMEType: "application/pdf"})
	require.NoError(t, err)

	assert.Equal(t, MethodLocalOCR, result.ExtractionMethod)
	assert.InDelta(t, 92.0, result.Confidence, 0.001)
	assert.Equal(t, 1, pdf.calls)
	assert.Equal(t, 1, ocr.calls)
	assert.Zero(t, extractor.imageCalls)
}

func TestScanFallsBackToVision(t *testing.T) {
	pdf := &fakeTextTier{result: TierResult{OK: false}}
	ocr := &fakeImageTier{result: TierResult{OK: false}}
	extractor := &fakeExtractor{extraction: goodExtraction()}
	p := newTestPipeline(pdf, ocr, extractor)

	result, err := p.Scan(context.Background(), Request{Data: []byte("pdf"), MIMEType: "application/pdf"})
	require.NoError(t, err)

	assert.Equal(t, MethodVision, result.ExtractionMethod)
	assert.Equal(t, visionConfidence, result.Confidence)
	assert.Equal(t, 1, extractor.imageCalls)
	assert.Zero(t, extractor.textCalls)
}

func TestScanImageSkipsNativeText(t *testing.T) {
	pdf := &fakeTextTier{result: TierResult{OK: true, Text: "should not run"}}
	ocr := &fakeImageTier{result: TierResult{OK: true, Text: "ocr text", Confidence: 0.9, CharCount: 200}}
	extractor := &fakeExtractor{extraction: goodExtraction()}
	p := newTestPipeline(pdf, ocr, extractor)

	result, err := p.Scan(context.Background(), Request{Data: []byte{0xFF, 0xD8}, MIMEType: "image/jpeg"})
	require.NoError(t, err)

	assert.Equal(t, MethodLocalOCR, result.ExtractionMethod)
	assert.Zero(t, pdf.calls)
	assert.Equal(t, 1, ocr.calls)
}

func TestScanAllTiersExhausted(t *testing.T) {
	pdf := &fakeTextTier{result: TierResult{OK: false}}
	ocr := &fakeImageTier{result: TierResult{OK: false}}
	extractor := &fakeExtractor{err: errors.New("model unavailable")}
	p := newTestPipeline(pdf, ocr, extractor)

	_, err := p.Scan(context.Background(), Request{Data: []byte("pdf"), MIMEType: "application/pdf"})
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, 1, extractor.imageCalls) // vision tried exactly once
}

func TestScanStructuringFailureCascades(t *testing.T) {
	// The model rejects tier text twice, then succeeds on vision. The pipeline
	// must treat a structuring failure exactly like a tier failure.
	pdf := &fakeTextTier{result: TierResult{OK: true, Text: "garbled", CharCount: 150}}
	ocr := &fakeImageTier{result: TierResult{OK: true, Text: "garbled", Confidence: 0.9, CharCount: 150}}

	extractor := &cascadeExtractor{visionExtraction: goodExtraction()}
	p := newTestPipeline(pdf, ocr, extractor)

	result, err := p.Scan(context.Background(), Request{Data: []byte("pdf"), MIMEType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, MethodVision, result.ExtractionMethod)
	assert.Equal(t, 2, extractor.textCalls)
}

// cascadeExtractor fails every text call and succeeds on vision
type cascadeExtractor struct {
	visionExtraction *Extraction
	textCalls        int
}

func (c *cascadeExtractor) ExtractFromText(_ context.Context, _ string, _ string) (*Extraction, error) {
	c.textCalls++
	return nil, errors.New("no line items found")
}

func (c *cascadeExtractor) ExtractFromImages(_ context.Context, _ [][]byte, _ string) (*Extraction, error) {
	return c.visionExtraction, nil
}

func TestScanPassesCorrectionContextVerbatim(t *testing.T) {
	pdf := &fakeTextTier{result: TierResult{OK: true, Text: "receipt", CharCount: 200}}
	extractor := &fakeExtractor{extraction: goodExtraction()}
	p := newTestPipeline(pdf, &fakeImageTier{}, extractor)

	correction := `{"previous": {"total": 120}, "correction": "the second line is 45.00 not 40.00"}`
	_, err := p.Scan(context.Background(), Request{
		Data:              []byte("pdf"),
		MIMEType:          "application/pdf",
		CorrectionContext: correction,
	})
	require.NoError(t, err)
	require.Len(t, extractor.corrections, 1)
	assert.Equal(t, correction, extractor.corrections[0])
}

func TestScanRasterizationFailureGoesToVisionError(t *testing.T) {
	pdf := &fakeTextTier{result: TierResult{OK: false}}
	extractor := &fakeExtractor{extraction: goodExtraction()}
	p := newTestPipeline(pdf, &fakeImageTier{}, extractor)
	p.renderPDF = func(data []byte, maxPages int) ([][]byte, error) {
		return nil, errors.New("corrupt pdf")
	}

	_, err := p.Scan(context.Background(), Request{Data: []byte("pdf"), MIMEType: "application/pdf"})
	assert.ErrorIs(t, err, ErrExtraction)
}
