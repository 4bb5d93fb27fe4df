// Package config holds engine-wide settings accumulated via UCI setoption
// commands, mirroring how internal/uci.UCI accumulates options before
// mirroring them into the engine.
package config

// Config is a plain struct of engine options. Default returns the engine's
// default configuration; the zero value is not it.
type Config struct {
	HashMB       int
	MoveOverhead int // milliseconds

	LimitStrength bool
	Elo           int
}

const (
	MinElo     = 500
	MaxElo     = 3000
	DefaultElo = 1500
)

// Default returns the engine's default configuration.
func Default() Config {
	return Config{
		HashMB:       64,
		MoveOverhead: 30,
		Elo:          DefaultElo,
	}
}

// Clamp bounds Elo to [MinElo, MaxElo].
func (c *Config) Clamp() {
	if c.Elo < MinElo {
		c.Elo = MinElo
	}
	if c.Elo > MaxElo {
		c.Elo = MaxElo
	}
}
