package vehicle

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/KevinKickass/FleetView/internal/schema"
)

type Type string

const (
	Truck    Type = "truck"
	Tractor  Type = "tractor"
	Trailer  Type = "trailer"
	Combined Type = "combined"
)

type WheelConfig string

const (
	Single WheelConfig = "single"
	Dual   WheelConfig = "dual"
	Mixed  WheelConfig = "mixed"
)

type StatusMode string

const (
	AllNormal      StatusMode = "all-normal"
	RandomWarnings StatusMode = "random-warnings"
	RandomCritical StatusMode = "random-critical"
	MixedStatus    StatusMode = "mixed"
)

type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusNoData   Status = "nodata"
)

type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Letter is the side's letter in a wheel id.
func (s Side) Letter() string {
	if s == Left {
		return "L"
	}
	return "R"
}

// Unit tags which part of a combined vehicle an axle belongs to.
type Unit string

const (
	UnitNone    Unit = "none"
	UnitTractor Unit = "tractor"
	UnitTrailer Unit = "trailer"
)

// Geometry constants shared by the generator and the layouts.
const (
	AxleSpacing     = 150.0
	AxleBaseOffset  = 100.0
	BaseLength      = 200.0
	ConnectorGap    = 50.0
	WheelRadius     = 20.0
	WheelSpacing    = 60.0
	DualWheelOffset = 15.0
	CentreLineY     = 150.0
)

// Bounds is the allowed axle range for a vehicle type.
type Bounds struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
}

var axleBounds = map[Type]Bounds{
	Truck:    {Min: 1, Max: 4, Default: 2},
	Tractor:  {Min: 2, Max: 6, Default: 2},
	Trailer:  {Min: 1, Max: 6, Default: 3},
	Combined: {Min: 3, Max: 8, Default: 5},
}

func BoundsFor(t Type) (Bounds, bool) {
	b, ok := axleBounds[t]
	return b, ok
}

// AllBounds returns a copy of the per-type bounds.
func AllBounds() map[Type]Bounds {
	out := make(map[Type]Bounds, len(axleBounds))
	for k, v := range axleBounds {
		out[k] = v
	}
	return out
}

// Types lists vehicle types in display order.
func Types() []Type {
	return []Type{Truck, Tractor, Trailer, Combined}
}

// Config is the user-selected vehicle configuration.
type Config struct {
	Type        Type        `json:"vehicle_type"`
	AxleCount   int         `json:"axle_count"`
	WheelConfig WheelConfig `json:"wheel_config"`
	StatusMode  StatusMode  `json:"status_mode"`
}

// DefaultConfig is the configuration a fresh visualization starts with.
func DefaultConfig() Config {
	return Config{Type: Truck, AxleCount: 2, WheelConfig: Single, StatusMode: AllNormal}
}

// WithType switches the vehicle type and resets the axle count to the
// type's default. Unknown types leave the configuration unchanged.
func (c Config) WithType(t Type) Config {
	b, ok := axleBounds[t]
	if !ok {
		return c
	}
	c.Type = t
	c.AxleCount = b.Default
	return c
}

// ValidationError reports a configuration that cannot be generated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (c Config) Validate() error {
	b, ok := axleBounds[c.Type]
	if !ok {
		return &ValidationError{Field: "vehicle_type", Message: fmt.Sprintf("unknown type %q", c.Type)}
	}
	if c.AxleCount < b.Min || c.AxleCount > b.Max {
		return &ValidationError{
			Field:   "axle_count",
			Message: fmt.Sprintf("%d outside [%d,%d] for %s", c.AxleCount, b.Min, b.Max, c.Type),
		}
	}
	switch c.WheelConfig {
	case Single, Dual, Mixed:
	default:
		return &ValidationError{Field: "wheel_config", Message: fmt.Sprintf("unknown value %q", c.WheelConfig)}
	}
	switch c.StatusMode {
	case AllNormal, RandomWarnings, RandomCritical, MixedStatus:
	default:
		return &ValidationError{Field: "status_mode", Message: fmt.Sprintf("unknown value %q", c.StatusMode)}
	}
	return nil
}

var configValidator = schema.MustValidator(schema.VehicleConfig)

// ParseConfig validates a JSON document against the vehicle configuration
// schema and decodes it. Omitted wheel_config and status_mode take the
// defaults.
func ParseConfig(data []byte) (Config, error) {
	if err := configValidator.Validate(data); err != nil {
		return Config{}, &ValidationError{Field: "configuration", Message: err.Error()}
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ValidationError{Field: "configuration", Message: err.Error()}
	}
	return cfg, cfg.Validate()
}

// TractorAxles is the number of axles on the tractor part of a combined
// vehicle: min(3, floor(axleCount/2)).
func TractorAxles(axleCount int) int {
	return min(3, axleCount/2)
}

// WheelsPerSide for the axle at zero-based index.
func WheelsPerSide(wc WheelConfig, index int) int {
	switch wc {
	case Dual:
		return 2
	case Mixed:
		if index == 0 {
			return 1
		}
		return 2
	default:
		return 1
	}
}

type SensorReading struct {
	Temperature float64   `json:"temperature"` // °C
	Pressure    float64   `json:"pressure"`    // bar
	LastUpdated time.Time `json:"last_updated"`
	Battery     int       `json:"battery"` // percent
}

type Wheel struct {
	ID      string        `json:"id"`
	Side    Side          `json:"side"`
	Index   int           `json:"index"`
	Status  Status        `json:"status"`
	Reading SensorReading `json:"sensor_reading"`
}

type Axle struct {
	Number   int     `json:"axle_number"`
	Position float64 `json:"position"`
	Unit     Unit    `json:"unit"`
	Wheels   []Wheel `json:"wheels"`
}

// Model is one generated vehicle. It is replaced, never patched, when the
// configuration changes.
type Model struct {
	Type        Type      `json:"type"`
	Config      Config    `json:"config"`
	Axles       []Axle    `json:"axles"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Wheel looks up a wheel and its axle by id.
func (m *Model) Wheel(id string) (*Wheel, *Axle, bool) {
	if m == nil {
		return nil, nil, false
	}
	for i := range m.Axles {
		axle := &m.Axles[i]
		for j := range axle.Wheels {
			if axle.Wheels[j].ID == id {
				return &axle.Wheels[j], axle, true
			}
		}
	}
	return nil, nil, false
}

// WheelIDs returns all wheel ids sorted.
func (m *Model) WheelIDs() []string {
	var ids []string
	for _, a := range m.Axles {
		for _, w := range a.Wheels {
			ids = append(ids, w.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// StatusCounts tallies wheels by status.
func (m *Model) StatusCounts() map[Status]int {
	counts := make(map[Status]int)
	for _, a := range m.Axles {
		for _, w := range a.Wheels {
			counts[w.Status]++
		}
	}
	return counts
}

// UnitAxleCount counts axles tagged with unit.
func (m *Model) UnitAxleCount(unit Unit) int {
	n := 0
	for _, a := range m.Axles {
		if a.Unit == unit {
			n++
		}
	}
	return n
}
