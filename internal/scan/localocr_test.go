package scan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeEngine struct {
	text       string
	confidence float64
	err        error
}

func (f *fakeEngine) Recognize(_ context.Context, _ []byte) (string, float64, error) {
	return f.text, f.confidence, f.err
}

func TestLocalOCRTierSuccess(t *testing.T) {
	engine := &fakeEngine{text: strings.Repeat("word ", 30), confidence: 0.93}
	tier := NewLocalOCRTier(engine, zap.NewNop())

	res := tier.Extract(context.Background(), [][]byte{{0x01}, {0x02}})
	assert.True(t, res.OK)
	assert.InDelta(t, 0.93, res.Confidence, 0.001)
	assert.GreaterOrEqual(t, res.CharCount, MinTextChars)
}

func TestLocalOCRTierLowConfidenceFails(t *testing.T) {
	// Plenty of text, but the engine is unsure about it
	engine := &fakeEngine{text: strings.Repeat("word ", 30), confidence: 0.60}
	tier := NewLocalOCRTier(engine, zap.NewNop())

	res := tier.Extract(context.Background(), [][]byte{{0x01}})
	assert.False(t, res.OK)
	assert.InDelta(t, 0.60, res.Confidence, 0.001)
}

func TestLocalOCRTierTooLittleTextFails(t *testing.T) {
	engine := &fakeEngine{text: "Total 12.50", confidence: 0.99}
	tier := NewLocalOCRTier(engine, zap.NewNop())

	res := tier.Extract(context.Background(), [][]byte{{0x01}})
	assert.False(t, res.OK)
}

func TestLocalOCRTierAllPagesFail(t *testing.T) {
	engine := &fakeEngine{err: errors.New("tesseract unavailable")}
	tier := NewLocalOCRTier(engine, zap.NewNop())

	res := tier.Extract(context.Background(), [][]byte{{0x01}, {0x02}})
	assert.False(t, res.OK)
	assert.Zero(t, res.CharCount)
}

func TestLocalOCRTierCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &fakeEngine{text: strings.Repeat("word ", 30), confidence: 0.95}
	tier := NewLocalOCRTier(engine, zap.NewNop())

	res := tier.Extract(ctx, [][]byte{{0x01}})
	assert.False(t, res.OK)
}
