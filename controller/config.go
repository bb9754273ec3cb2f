package controller

import "time"

// Variant selects which game-lifecycle policy a controller runs with:
// SitAndGo is the persistent cash table, SNG the tournament-style
// elimination game.
type Variant int

const (
	VariantSitAndGo Variant = iota
	VariantSNG
)

func (v Variant) String() string {
	if v == VariantSNG {
		return "sng"
	}
	return "sitandgo"
}

// ParseVariant maps the CREATE command's type token onto a Variant.
func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "sitandgo", "cash", "ring":
		return VariantSitAndGo, true
	case "sng", "tournament":
		return VariantSNG, true
	}
	return VariantSitAndGo, false
}

// Status is the game lifecycle: Created → Started → (Paused ⇄ Started)
// → Ended / Expired / Finished.
type Status int

const (
	StatusCreated Status = iota
	StatusStarted
	StatusPaused
	StatusEnded
	StatusExpired
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusStarted:
		return "started"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	case StatusExpired:
		return "expired"
	case StatusFinished:
		return "finished"
	}
	return "unknown"
}

// Config carries everything the CREATE command can set.
type Config struct {
	Variant    Variant
	MaxPlayers int
	Stake      int64 // buy-in / starting stack
	Timeout    time.Duration
	Name       string

	BlindsStart  int64
	BlindsFactor float64
	BlindsTime   time.Duration
	Ante         int64

	MandatoryStraddle bool
	Password          string
	Restart           bool
	ExpireIn          time.Duration
	EnableInsurance   bool
}

// Normalize fills in the defaults a sparse CREATE command leaves out.
func (c *Config) Normalize() {
	if c.MaxPlayers <= 0 || c.MaxPlayers > 10 {
		c.MaxPlayers = 10
	}
	if c.Stake <= 0 {
		c.Stake = 1500
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BlindsStart <= 0 {
		c.BlindsStart = 20
	}
	if c.BlindsFactor < 1 {
		c.BlindsFactor = 2
	}
	if c.BlindsTime <= 0 {
		c.BlindsTime = 5 * time.Minute
	}
	if c.ExpireIn <= 0 {
		c.ExpireIn = 6 * time.Hour
	}
	if c.Name == "" {
		c.Name = "unnamed"
	}
}

// bigBlindAt returns the big blind for a given schedule level: BlindsStart
// multiplied by BlindsFactor once per level. The schedule is computed, not
// read from a fixed-length list, so every level has a value.
func (c *Config) bigBlindAt(level int) int64 {
	bb := float64(c.BlindsStart)
	for i := 0; i < level; i++ {
		bb *= c.BlindsFactor
	}
	return int64(bb)
}
