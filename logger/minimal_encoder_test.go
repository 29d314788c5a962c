package logger

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(str string) string {
	return ansiRegex.ReplaceAllString(str, "")
}

func encode(t *testing.T, enc zapcore.Encoder, level zapcore.Level, msg string, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:      level,
		Time:       time.Date(2026, 1, 2, 13, 4, 35, 0, time.UTC),
		LoggerName: "pipeline.monitor",
		Message:    msg,
	}, fields)
	require.NoError(t, err)
	return stripANSI(buf.String())
}

func TestMinimalEncoderNeverDiscardsFields(t *testing.T) {
	out := encode(t, newMinimalEncoder(), zapcore.InfoLevel, "Tick",
		zap.Int("tick", 12),
		zap.String("matcher", "button.add-to-cart-buy-now-btn"),
		zap.Bool("matched", false),
		zap.Float64("rate", 9.5),
		zap.String("field.with.dots", "kept"),
	)

	for _, want := range []string{
		"tick=12",
		"matcher=button.add-to-cart-buy-now-btn",
		"matched=false",
		"rate=9.5",
		"field.with.dots=kept",
	} {
		assert.Contains(t, out, want)
	}
}

func TestMinimalEncoderLayout(t *testing.T) {
	out := encode(t, newMinimalEncoder(), zapcore.InfoLevel, "Stage entered",
		zap.String(FieldSymbol, "꩜"),
		zap.String(FieldStage, "monitoring"),
		zap.String(FieldRunID, "0f8e2c1a-aaaa-bbbb-cccc-ddddeeeeffff"),
		zap.Int64(FieldDurationMS, 42),
	)

	assert.Equal(t, "13:04:35.000  ꩜ [monitoring]  p.monitor  Stage entered  0f8e2c1a  42ms\n", out)
}

func TestMinimalEncoderLevels(t *testing.T) {
	assert.NotContains(t, encode(t, newMinimalEncoder(), zapcore.InfoLevel, "calm"), "INFO")
	assert.Contains(t, encode(t, newMinimalEncoder(), zapcore.WarnLevel, "careful"), "WARN")
	assert.Contains(t, encode(t, newMinimalEncoder(), zapcore.ErrorLevel, "broken"), "ERROR")
}

func TestMinimalEncoderKeepsContextFields(t *testing.T) {
	enc := newMinimalEncoder()
	enc.AddString("target", "https://shop.example/products/widget-i123.html")

	clone := enc.Clone()
	out := encode(t, clone, zapcore.InfoLevel, "Pre-loading product page", zap.Int("attempt", 1))

	assert.Contains(t, out, "target=https://shop.example/products/widget-i123.html")
	assert.Contains(t, out, "attempt=1")
}

func TestSetThemeIgnoresUnknown(t *testing.T) {
	t.Cleanup(func() { SetTheme("everforest") })

	SetTheme("gruvbox")
	assert.Equal(t, "gruvbox", currentTheme)

	SetTheme("solarized")
	assert.Equal(t, "gruvbox", currentTheme)
}
