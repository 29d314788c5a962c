package sym

import (
	"testing"
	"unicode/utf8"
)

func TestStageSymbolsAreSingleRunes(t *testing.T) {
	for stage, glyph := range StageSymbols {
		if utf8.RuneCountInString(glyph) != 1 {
			t.Errorf("stage %q glyph %q should be a single rune", stage, glyph)
		}
	}
}

func TestStageSymbolsAreDistinct(t *testing.T) {
	seen := make(map[string]string)
	for stage, glyph := range StageSymbols {
		if other, ok := seen[glyph]; ok {
			t.Errorf("stages %q and %q share glyph %q", stage, other, glyph)
		}
		seen[glyph] = stage
	}
}

func TestForStageFallsBackToPulse(t *testing.T) {
	if got := ForStage("acquiring"); got != So {
		t.Errorf("ForStage(acquiring) = %q, want %q", got, So)
	}
	if got := ForStage("unknown"); got != Pulse {
		t.Errorf("ForStage(unknown) = %q, want %q", got, Pulse)
	}
}
