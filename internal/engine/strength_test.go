package engine

import (
	"testing"

	"github.com/hailam/chessplay/internal/config"
)

func TestScaleForStrengthFullStrengthIsIdentity(t *testing.T) {
	const score = 137
	got := scaleForStrength(score, config.DefaultElo, 0xdeadbeef)
	if got != score {
		t.Errorf("scaleForStrength at DefaultElo changed the score: got %d, want %d", got, score)
	}
}

func TestScaleForStrengthDeterministic(t *testing.T) {
	a := scaleForStrength(250, 800, 0x12345678)
	b := scaleForStrength(250, 800, 0x12345678)
	if a != b {
		t.Errorf("scaleForStrength is not deterministic for the same hash: %d != %d", a, b)
	}
}

func TestScaleForStrengthBoundedPerturbation(t *testing.T) {
	const score = 0
	maxNoise := (config.DefaultElo - config.MinElo) / 10

	for hash := uint64(0); hash < 64; hash++ {
		got := scaleForStrength(score, config.MinElo, hash*0x9E3779B97F4A7C15)
		if got < -maxNoise || got > maxNoise {
			t.Errorf("scaleForStrength(%d, MinElo, %d) = %d, outside +/-%d bound", score, hash, got, maxNoise)
		}
	}
}

func TestEngineSetStrengthPropagatesToWorker(t *testing.T) {
	eng := NewEngine(4)
	cfg := config.Config{LimitStrength: true, Elo: config.MinElo}
	eng.SetStrength(&cfg)

	if eng.worker.strength == nil || !eng.worker.strength.LimitStrength || eng.worker.strength.Elo != config.MinElo {
		t.Errorf("worker did not receive strength config")
	}

	eng.SetStrength(nil)
	if eng.worker.strength != nil {
		t.Errorf("worker retained strength config after clearing")
	}
}
