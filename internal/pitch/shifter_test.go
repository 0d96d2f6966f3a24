package pitch

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/himanishpuri/ChirpArena/internal/audio"
	"github.com/himanishpuri/ChirpArena/internal/config"
)

func TestGetShiftedPreservesDuration(t *testing.T) {
	base := sine(440, 1.0, 44100)
	s := NewShifter(base, 44100)

	for _, st := range []int{-12, -9, -6, -3, 0, 3, 7, 12} {
		shifted := s.GetShifted(st)
		if len(shifted) != len(base) {
			t.Errorf("Shift %+d: length %d, expected %d", st, len(shifted), len(base))
		}
	}
}

func TestGetShiftedDeterministic(t *testing.T) {
	base := sine(523.25, 1.0, 44100)

	a := NewShifter(base, 44100).GetShifted(-6)
	b := NewShifter(base, 44100).GetShifted(-6)

	if len(a) != len(b) {
		t.Fatalf("Lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Sample %d differs between identical shifters: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestGetShiftedCached(t *testing.T) {
	s := NewShifter(sine(440, 0.5, 44100), 44100)

	first := s.GetShifted(-3)
	second := s.GetShifted(-3)
	if &first[0] != &second[0] {
		t.Error("Repeated shifts should return the cached buffer")
	}
}

func TestGetShiftedZeroIsBaseCopy(t *testing.T) {
	base := sine(440, 0.25, 44100)
	s := NewShifter(base, 44100)

	out := s.GetShifted(0)
	if len(out) != len(s.Base()) {
		t.Fatalf("Zero shift length %d, expected %d", len(out), len(s.Base()))
	}
	for i := range out {
		if out[i] != s.Base()[i] {
			t.Fatalf("Zero shift altered sample %d", i)
		}
	}
	if &out[0] == &s.Base()[0] {
		t.Error("Zero shift must not alias the base buffer")
	}
}

func TestGetShiftedChangesPitch(t *testing.T) {
	tr := NewTracker(config.Default())
	s := NewShifter(sine(880, 1.0, 44100), 44100)

	tests := []struct {
		shift  int
		wantHz float64
	}{
		{-12, 440},
		{-6, 880 * math.Pow(2, -6.0/12)},
		{-3, 880 * math.Pow(2, -3.0/12)},
	}
	for _, tt := range tests {
		c := tr.Extract(s.GetShifted(tt.shift), 44100)
		if c.MedianHz == 0 {
			t.Errorf("Shift %+d: no pitch detected", tt.shift)
			continue
		}
		if math.Abs(c.MedianHz-tt.wantHz) > tt.wantHz*0.05 {
			t.Errorf("Shift %+d: median %f Hz, expected within 5%% of %f", tt.shift, c.MedianHz, tt.wantHz)
		}
	}
}

func TestShiftRoundTripRestoresPitch(t *testing.T) {
	tr := NewTracker(config.Default())
	base := sine(440, 1.0, 44100)

	up := NewShifter(base, 44100).GetShifted(5)
	restored := NewShifter(up, 44100).GetShifted(-5)

	if len(restored) != len(base) {
		t.Fatalf("Round trip changed length: %d vs %d", len(restored), len(base))
	}
	c := tr.Extract(restored, 44100)
	if c.MedianHz == 0 {
		t.Fatal("No pitch detected after round trip")
	}
	if math.Abs(c.MedianHz-440) > 440*0.05 {
		t.Errorf("Round-trip median %f Hz, expected within 5%% of 440", c.MedianHz)
	}
}

func TestMaterialize(t *testing.T) {
	dir := t.TempDir()
	base := sine(440, 0.5, 44100)
	s := NewShifter(base, 44100)

	shifts := []int{-9, -6, -3}
	if err := s.Materialize(context.Background(), shifts, dir, 0.4); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	for round := 1; round <= len(shifts); round++ {
		path := RoundFile(dir, round)
		samples, sampleRate, err := audio.DecodeFile(path)
		if err != nil {
			t.Fatalf("Round %d file unreadable: %v", round, err)
		}
		if sampleRate != 44100 {
			t.Errorf("Round %d: sample rate %d, expected 44100", round, sampleRate)
		}
		wantLen := len(base) + int(0.4*44100)
		if len(samples) != wantLen {
			t.Errorf("Round %d: %d samples, expected %d (base + preroll)", round, len(samples), wantLen)
		}
		// Preroll must actually be silent.
		if rms := audio.RMS(samples[:int(0.4*44100)]); rms > 1e-6 {
			t.Errorf("Round %d: preroll RMS %f, expected silence", round, rms)
		}
	}

	// The base copy ships clean, without a preroll.
	baseSamples, _, err := audio.DecodeFile(BaseFile(dir))
	if err != nil {
		t.Fatalf("Base file unreadable: %v", err)
	}
	if len(baseSamples) != len(base) {
		t.Errorf("Base file has %d samples, expected %d", len(baseSamples), len(base))
	}
}

func TestMaterializeBadDir(t *testing.T) {
	s := NewShifter(sine(440, 0.1, 44100), 44100)

	// A file standing where the directory should go must fail cleanly.
	dir := t.TempDir() + "/occupied"
	if err := os.WriteFile(dir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Materialize(context.Background(), []int{-3}, dir, 0); err == nil {
		t.Error("Expected error when assets dir cannot be created")
	}
}

func TestResampleLinear(t *testing.T) {
	out := resampleLinear([]float64{0, 1, 2, 3}, 7)
	if len(out) != 7 {
		t.Fatalf("Length %d, expected 7", len(out))
	}
	if out[0] != 0 || out[6] != 3 {
		t.Errorf("Endpoints %f, %f not preserved", out[0], out[6])
	}
	if math.Abs(out[3]-1.5) > 1e-9 {
		t.Errorf("Midpoint = %f, expected 1.5", out[3])
	}
}
