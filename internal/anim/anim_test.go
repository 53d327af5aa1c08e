package anim

import (
	"testing"

	"github.com/smazurov/statuslight/internal/color"
)

func TestPeriodicity(t *testing.T) {
	tests := []struct {
		kind   Kind
		period uint32
	}{
		{Breathing, BreathingPeriod},
		{Blinking, 2 * BlinkHalfPeriod},
		{Fade, FadePeriod},
		{FadeInOut, FadeInOutPeriod},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			for f := uint32(0); f < 3*tt.period; f++ {
				if a, b := Brightness(tt.kind, f), Brightness(tt.kind, f+tt.period); a != b {
					t.Fatalf("frame %d = %d, frame %d = %d", f, a, f+tt.period, b)
				}
			}
		})
	}

	for f := uint32(0); f < RainbowPeriod; f++ {
		if RainbowColor(f) != RainbowColor(f+RainbowPeriod) {
			t.Fatalf("rainbow frame %d differs from frame %d", f, f+RainbowPeriod)
		}
	}
}

func TestBreathing(t *testing.T) {
	tests := []struct {
		frame uint32
		want  uint8
	}{
		{0, 127},
		{15, 255},
		{45, 0},
		{60, 127},
	}
	for _, tt := range tests {
		if got := BreathingBrightness(tt.frame); got != tt.want {
			t.Errorf("BreathingBrightness(%d) = %d, want %d", tt.frame, got, tt.want)
		}
	}
}

func TestBlinking(t *testing.T) {
	for f := uint32(0); f < 60; f++ {
		want := uint8(0)
		if (f/15)%2 == 1 {
			want = 255
		}
		got := BlinkingBrightness(f)
		if got != want {
			t.Errorf("BlinkingBrightness(%d) = %d, want %d", f, got, want)
		}
		if got != 0 && got != 255 {
			t.Errorf("BlinkingBrightness(%d) = %d is not on/off", f, got)
		}
	}
	if BlinkingBrightness(14) != 0 || BlinkingBrightness(15) != 255 || BlinkingBrightness(30) != 0 {
		t.Error("blink edges not at frames 15 and 30")
	}
}

func TestFade(t *testing.T) {
	tests := []struct {
		frame uint32
		want  uint8
	}{
		{0, 0},
		{45, 127},
		{89, 252},
		{90, 255},
		{135, 127},
		{179, 2},
		{180, 0},
	}
	for _, tt := range tests {
		if got := FadeBrightness(tt.frame); got != tt.want {
			t.Errorf("FadeBrightness(%d) = %d, want %d", tt.frame, got, tt.want)
		}
	}
}

func TestFadeInOut(t *testing.T) {
	tests := []struct {
		frame uint32
		want  uint8
	}{
		{0, 0},
		{30, 127},
		{59, 250},
		{60, 255},
		{179, 255},
		{180, 255},
		{210, 127},
		{239, 4},
		{240, 0},
	}
	for _, tt := range tests {
		if got := FadeInOutBrightness(tt.frame); got != tt.want {
			t.Errorf("FadeInOutBrightness(%d) = %d, want %d", tt.frame, got, tt.want)
		}
	}
}

func TestRainbowIgnoresBase(t *testing.T) {
	for _, f := range []uint32{0, 60, 120, 359} {
		a := Render(Rainbow, color.Red, f)
		b := Render(Rainbow, color.Blue, f)
		if a != b {
			t.Errorf("frame %d: rainbow depends on base color (%v vs %v)", f, a, b)
		}
		if a.Brightness != 255 {
			t.Errorf("frame %d: rainbow brightness = %d, want 255", f, a.Brightness)
		}
	}
	if got := RainbowColor(120); got != color.Green {
		t.Errorf("RainbowColor(120) = %v, want green", got)
	}
}

func TestRenderKeepsBase(t *testing.T) {
	for _, k := range []Kind{None, Breathing, Blinking, Fade, FadeInOut} {
		if got := Render(k, color.Purple, 7); got.Color != color.Purple {
			t.Errorf("Render(%s).Color = %v, want purple", k, got.Color)
		}
	}
	if got := Render(None, color.Purple, 1234); got.Brightness != 255 {
		t.Errorf("Render(none).Brightness = %d, want 255", got.Brightness)
	}
}

func TestParse(t *testing.T) {
	for _, k := range Kinds() {
		got, err := Parse(k.String())
		if err != nil || got != k {
			t.Errorf("Parse(%q) = %v, %v; want %v", k.String(), got, err, k)
		}
	}
	if got, err := Parse("Fade-In-Out"); err != nil || got != FadeInOut {
		t.Errorf("Parse(Fade-In-Out) = %v, %v", got, err)
	}
	if _, err := Parse("strobe"); err == nil {
		t.Error("Parse(strobe) should fail")
	}
}
