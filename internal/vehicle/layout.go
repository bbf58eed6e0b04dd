package vehicle

import (
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"
)

// Viewport is the pan/zoom transform applied to the vehicle group.
type Viewport struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// IdentityViewport is what the reset control restores.
func IdentityViewport() Viewport {
	return Viewport{Scale: 1}
}

// String formats the viewport as an SVG transform attribute.
func (v Viewport) String() string {
	return "translate(" + num(v.TranslateX) + "," + num(v.TranslateY) + ") scale(" + num(v.Scale) + ")"
}

type Scheme string

const (
	SchemeProcedural Scheme = "procedural"
	SchemeArtwork    Scheme = "artwork"
)

// Rect is a body shape in logical coordinates.
type Rect struct {
	Class string  `json:"class"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"width"`
	H     float64 `json:"height"`
	RX    float64 `json:"rx"`
}

// AxleMarker is the axle line plus its "Axle N" label.
type AxleMarker struct {
	Number int     `json:"axle_number"`
	X      float64 `json:"x"`
	Y1     float64 `json:"y1"`
	Y2     float64 `json:"y2"`
	LabelY float64 `json:"label_y"`
}

func (a AxleMarker) Label() string { return "Axle " + strconv.Itoa(a.Number) }

// WheelMark is a positioned wheel.
type WheelMark struct {
	ID     string  `json:"id"`
	Status Status  `json:"status"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	R      float64 `json:"r"`
}

// Fragment is prepared external artwork: inner SVG markup, its native size,
// and where it sits in the logical space.
type Fragment struct {
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
	Content       string  `json:"-"`
}

// RenderPlan is everything needed to draw one vehicle.
type RenderPlan struct {
	Type    Type         `json:"type"`
	Scheme  Scheme       `json:"scheme"`
	Length  float64      `json:"length"`
	Body    []Rect       `json:"body"`
	Axles   []AxleMarker `json:"axles"`
	Wheels  []WheelMark  `json:"wheels"`
	Artwork *Fragment    `json:"artwork,omitempty"`
	// Fit is the auto-centering transform for this plan.
	Fit Viewport `json:"fit"`
}

// LayoutStrategy turns a model into a render plan.
type LayoutStrategy interface {
	Layout(m *Model, cfg Config) (*RenderPlan, error)
}

// ComputeLength is the logical body length for cfg.
func ComputeLength(cfg Config) float64 {
	if cfg.Type == Combined {
		tractor := TractorAxles(cfg.AxleCount)
		return unitLength(tractor) + unitLength(cfg.AxleCount-tractor) + ConnectorGap
	}
	return unitLength(cfg.AxleCount)
}

func unitLength(axles int) float64 {
	return BaseLength + float64(axles-1)*AxleSpacing
}

// Layouts selects the strategy per vehicle type.
type Layouts struct {
	Procedural *ProceduralLayout
	Artwork    *ArtworkLayout
}

func NewLayouts(artwork *ArtworkLoader, logger *zap.Logger) *Layouts {
	procedural := &ProceduralLayout{}
	return &Layouts{
		Procedural: procedural,
		Artwork:    NewArtworkLayout(artwork, TractorArtwork, procedural, logger),
	}
}

// SelectLayout returns the artwork strategy for tractors and the procedural
// one for everything else.
func (l *Layouts) SelectLayout(t Type) LayoutStrategy {
	if t == Tractor && l.Artwork != nil {
		return l.Artwork
	}
	return l.Procedural
}

// Plan lays out m with the strategy for its type.
func (l *Layouts) Plan(m *Model) (*RenderPlan, error) {
	if m == nil {
		return nil, fmt.Errorf("no model")
	}
	return l.SelectLayout(m.Type).Layout(m, m.Config)
}

// BoundingBox covers body shapes, axle markers and wheels.
func (p *RenderPlan) BoundingBox() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)

	grow := func(x0, y0, x1, y1 float64) {
		minX, minY = math.Min(minX, x0), math.Min(minY, y0)
		maxX, maxY = math.Max(maxX, x1), math.Max(maxY, y1)
	}

	for _, r := range p.Body {
		grow(r.X, r.Y, r.X+r.W, r.Y+r.H)
	}
	for _, a := range p.Axles {
		grow(a.X, math.Min(a.Y1, a.LabelY), a.X, a.Y2)
	}
	for _, w := range p.Wheels {
		grow(w.X-w.R, w.Y-w.R, w.X+w.R, w.Y+w.R)
	}

	if math.IsInf(minX, 1) {
		return 0, 0, 0, 0
	}
	return minX, minY, maxX, maxY
}

// Viewport point procedural plans are centred on.
const (
	AnchorX = 500.0
	AnchorY = 200.0
)

// centreOnAnchor places the bounding box centre of p on the anchor at scale 1.
func centreOnAnchor(p *RenderPlan) Viewport {
	minX, minY, maxX, maxY := p.BoundingBox()
	return Viewport{
		Scale:      1,
		TranslateX: AnchorX - (minX+maxX)/2,
		TranslateY: AnchorY - (minY+maxY)/2,
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
