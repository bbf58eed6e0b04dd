package vehicle

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness source for simulated wheel data.
type Rand interface {
	Float64() float64
}

// NewTimeSeededRand returns a source seeded from the clock.
func NewTimeSeededRand() Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>7|1))
}

// Generator produces vehicle models with simulated sensor data.
type Generator struct {
	mu  sync.Mutex
	rnd Rand
	now func() time.Time
}

// NewGenerator uses rnd and now; nil arguments fall back to a time-seeded
// source and time.Now.
func NewGenerator(rnd Rand, now func() time.Time) *Generator {
	if rnd == nil {
		rnd = NewTimeSeededRand()
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{rnd: rnd, now: now}
}

// Generate builds a fresh model for cfg. Every call resamples statuses and
// readings.
func (g *Generator) Generate(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	tractorAxles := 0
	if cfg.Type == Combined {
		tractorAxles = TractorAxles(cfg.AxleCount)
	}

	m := &Model{
		Type:        cfg.Type,
		Config:      cfg,
		Axles:       make([]Axle, 0, cfg.AxleCount),
		GeneratedAt: now,
	}

	for i := 0; i < cfg.AxleCount; i++ {
		axle := Axle{
			Number:   i + 1,
			Position: float64(i)*AxleSpacing + AxleBaseOffset,
			Unit:     UnitNone,
		}
		if cfg.Type == Combined {
			if i < tractorAxles {
				axle.Unit = UnitTractor
			} else {
				axle.Unit = UnitTrailer
			}
		}

		perSide := WheelsPerSide(cfg.WheelConfig, i)
		axle.Wheels = make([]Wheel, 0, perSide*2)
		for _, side := range []Side{Left, Right} {
			for idx := 1; idx <= perSide; idx++ {
				axle.Wheels = append(axle.Wheels, Wheel{
					ID:      fmt.Sprintf("%d%s%d", axle.Number, side.Letter(), idx),
					Side:    side,
					Index:   idx,
					Status:  g.sampleStatus(cfg.StatusMode),
					Reading: g.sampleReading(now),
				})
			}
		}

		m.Axles = append(m.Axles, axle)
	}

	return m, nil
}

func (g *Generator) sampleStatus(mode StatusMode) Status {
	switch mode {
	case RandomWarnings:
		if g.rnd.Float64() < 0.3 {
			return StatusWarning
		}
	case RandomCritical:
		if g.rnd.Float64() < 0.2 {
			return StatusCritical
		}
	case MixedStatus:
		r := g.rnd.Float64()
		switch {
		case r < 0.6:
			return StatusNormal
		case r < 0.8:
			return StatusWarning
		case r < 0.95:
			return StatusCritical
		default:
			return StatusNoData
		}
	}
	return StatusNormal
}

func (g *Generator) sampleReading(now time.Time) SensorReading {
	return SensorReading{
		Temperature: round1(20 + g.rnd.Float64()*30),
		Pressure:    round1(7 + g.rnd.Float64()*2),
		Battery:     70 + int(g.rnd.Float64()*30),
		LastUpdated: now.Add(-time.Duration(g.rnd.Float64() * float64(24*time.Hour))),
	}
}

// Float64 draws from the generator's source, for callers that share it.
func (g *Generator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
