package engine

import (
	"github.com/talgya/particle-worker/internal/choreo"
	"github.com/talgya/particle-worker/internal/particle"
)

// Scenario names a preset combination of choreography and kinematics.
type Scenario string

const (
	// ScenarioFountain launches everything at once and never recycles.
	ScenarioFountain Scenario = "fountain"
	// ScenarioSpray staggers launches, recycles, and settles horizontally.
	ScenarioSpray Scenario = "spray"
	// ScenarioDrift is spray with a simplex-noise wind field.
	ScenarioDrift Scenario = "drift"
	// ScenarioGust is spray with height-varying Perlin gusts.
	ScenarioGust Scenario = "gust"
	// ScenarioCover is spray with a floor-only bound and the cover fade.
	ScenarioCover Scenario = "cover"
)

// DefaultScenario is used when the host does not name one.
const DefaultScenario = ScenarioCover

// Scenarios lists every preset in display order.
func Scenarios() []Scenario {
	return []Scenario{ScenarioFountain, ScenarioSpray, ScenarioDrift, ScenarioGust, ScenarioCover}
}

// Default start ranges in [xLo, xHi, yLo, yHi] order.
var (
	DefaultStartPos = particle.Range{0, 0, 0, 0}
	DefaultStartVel = particle.Range{0.1, 0.2, -0.1, -0.2}
)

// NoiseKind selects the generator behind a turbulence field.
type NoiseKind string

const (
	NoiseSimplex NoiseKind = "simplex" // 2D wind, both axes
	NoisePerlin  NoiseKind = "perlin"  // horizontal gusts only
)

// TurbulenceConfig parameterizes the optional noise wind field.
type TurbulenceConfig struct {
	Kind      NoiseKind // empty means simplex
	Strength  float64   // units/ms²; 0 disables
	Scale     float64
	TimeScale float64
}

// Config fully describes one simulation instance.
type Config struct {
	Scenario   Scenario
	NumPoints  int
	Bounds     particle.Bounds
	Emitter    particle.Emitter
	Gravity    float64
	Drag       float64
	Turbulence TurbulenceConfig
	Recycle    bool
	Choreo     choreo.Config
	Seed       int64 // 0 draws from the environment
}

// DefaultConfig returns the cover scenario for the given room and count.
func DefaultConfig(numPoints int, halfWidth, halfHeight float64) Config {
	cfg, _ := ScenarioConfig(DefaultScenario, numPoints, halfWidth, halfHeight)
	return cfg
}

// ScenarioConfig builds the preset named by s. Unknown names return the
// default scenario and false.
func ScenarioConfig(s Scenario, numPoints int, halfWidth, halfHeight float64) (Config, bool) {
	cfg := Config{
		Scenario:  s,
		NumPoints: numPoints,
		Bounds:    particle.Bounds{HalfWidth: halfWidth, HalfHeight: halfHeight},
		Emitter: particle.Emitter{
			Position: DefaultStartPos,
			Velocity: DefaultStartVel,
		},
		Gravity: particle.DefaultGravity,
		Recycle: true,
		Choreo:  choreo.DefaultConfig(),
	}

	switch s {
	case ScenarioFountain:
		cfg.Recycle = false
		cfg.Bounds.Margin = 1
		cfg.Choreo = choreo.Config{}
	case ScenarioSpray:
		cfg.Drag = 0.00002
		cfg.Choreo.Cover = nil
	case ScenarioDrift:
		cfg.Drag = 0.00002
		cfg.Choreo.Cover = nil
		cfg.Turbulence = TurbulenceConfig{Kind: NoiseSimplex, Strength: 0.00004, Scale: 0.01, TimeScale: 0.0003}
	case ScenarioGust:
		cfg.Drag = 0.00002
		cfg.Choreo.Cover = nil
		cfg.Turbulence = TurbulenceConfig{Kind: NoisePerlin, Strength: 0.00006, Scale: 0.05, TimeScale: 0.0005}
	case ScenarioCover:
		cfg.Bounds.Mode = particle.BoundsFloorOnly
	default:
		cfg, _ = ScenarioConfig(DefaultScenario, numPoints, halfWidth, halfHeight)
		return cfg, false
	}
	return cfg, true
}
