package ui

import (
	"fmt"
	"math"

	"github.com/KevinKickass/FleetView/internal/vehicle"
)

type DragMode string

const (
	Idle     DragMode = "idle"
	Dragging DragMode = "dragging"
)

const (
	ZoomStep = 0.1
	MinScale = 0.5
)

type VizEventKind string

const (
	VizPointerDown VizEventKind = "pointer_down"
	VizPointerMove VizEventKind = "pointer_move"
	VizPointerUp   VizEventKind = "pointer_up"
	VizZoomIn      VizEventKind = "zoom_in"
	VizZoomOut     VizEventKind = "zoom_out"
	VizReset       VizEventKind = "reset_view"
	VizSelectWheel VizEventKind = "select_wheel"
	VizSetType     VizEventKind = "set_type"
	VizSetAxles    VizEventKind = "set_axles"
	VizSetWheels   VizEventKind = "set_wheels"
	VizSetStatus   VizEventKind = "set_status"
	VizApply       VizEventKind = "apply"
)

// VizEvent is one user interaction with the visualization.
type VizEvent struct {
	Kind VizEventKind
	// Pointer position in screen pixels.
	X, Y float64
	// Background is set when the pointer went down on the canvas itself
	// rather than on a wheel or body shape.
	Background bool
	WheelID    string
	Value      string
	Axles      int
}

// Builder regenerates a vehicle for a configuration.
type Builder interface {
	Build(cfg vehicle.Config) (*vehicle.Model, *vehicle.RenderPlan, error)
}

// VizState is the visualization as the user sees it. Pending is the form;
// Applied is what Model and Plan were built from.
type VizState struct {
	Mode     DragMode
	lastX    float64
	lastY    float64
	Viewport vehicle.Viewport
	Pending  vehicle.Config
	Applied  vehicle.Config
	Model    *vehicle.Model
	Plan     *vehicle.RenderPlan
	Selected string
}

// InitViz builds the default vehicle.
func InitViz(b Builder) (VizState, error) {
	s := VizState{Mode: Idle, Viewport: vehicle.IdentityViewport(), Pending: vehicle.DefaultConfig()}
	return ReduceViz(s, VizEvent{Kind: VizApply}, b)
}

// ReduceViz applies ev to s. On error the returned state is s unchanged.
func ReduceViz(s VizState, ev VizEvent, b Builder) (VizState, error) {
	switch ev.Kind {
	case VizPointerDown:
		if ev.Background {
			s.Mode = Dragging
			s.lastX, s.lastY = ev.X, ev.Y
		}

	case VizPointerMove:
		if s.Mode != Dragging {
			return s, nil
		}
		dx, dy := ev.X-s.lastX, ev.Y-s.lastY
		s.lastX, s.lastY = ev.X, ev.Y
		s.Viewport.TranslateX += dx / s.Viewport.Scale
		s.Viewport.TranslateY += dy / s.Viewport.Scale

	case VizPointerUp:
		s.Mode = Idle

	case VizZoomIn:
		s.Viewport.Scale = roundScale(s.Viewport.Scale + ZoomStep)

	case VizZoomOut:
		s.Viewport.Scale = math.Max(MinScale, roundScale(s.Viewport.Scale-ZoomStep))

	case VizReset:
		s.Viewport = vehicle.IdentityViewport()

	case VizSelectWheel:
		if _, _, ok := s.Model.Wheel(ev.WheelID); !ok {
			return s, fmt.Errorf("unknown wheel %q", ev.WheelID)
		}
		s.Selected = ev.WheelID

	case VizSetType:
		t := vehicle.Type(ev.Value)
		if _, ok := vehicle.BoundsFor(t); !ok {
			return s, &vehicle.ValidationError{Field: "vehicle_type", Message: fmt.Sprintf("unknown type %q", ev.Value)}
		}
		s.Pending = s.Pending.WithType(t)

	case VizSetAxles:
		next := s.Pending
		next.AxleCount = ev.Axles
		if err := next.Validate(); err != nil {
			return s, err
		}
		s.Pending = next

	case VizSetWheels:
		next := s.Pending
		next.WheelConfig = vehicle.WheelConfig(ev.Value)
		if err := next.Validate(); err != nil {
			return s, err
		}
		s.Pending = next

	case VizSetStatus:
		next := s.Pending
		next.StatusMode = vehicle.StatusMode(ev.Value)
		if err := next.Validate(); err != nil {
			return s, err
		}
		s.Pending = next

	case VizApply:
		m, plan, err := b.Build(s.Pending)
		if err != nil {
			return s, err
		}
		s.Applied = s.Pending
		s.Model = m
		s.Plan = plan
		s.Selected = ""
		s.Viewport = plan.Fit
		s.Mode = Idle

	default:
		return s, fmt.Errorf("unknown visualization event: %s", ev.Kind)
	}

	return s, nil
}

// roundScale removes float drift. Scales off the 0.01 grid are kept as is.
func roundScale(v float64) float64 {
	r := math.Round(v*100) / 100
	if math.Abs(v-r) < 1e-9 {
		return r
	}
	return v
}

// SVG renders the current plan with the current viewport and selection.
func (s VizState) SVG() (string, error) {
	return vehicle.RenderSVGString(s.Plan, s.Viewport, s.Selected)
}

// VizView is the visualization update sent to the browser.
type VizView struct {
	Mode      DragMode               `json:"mode"`
	Viewport  vehicle.Viewport       `json:"viewport"`
	Transform string                 `json:"transform"`
	Pending   vehicle.Config         `json:"pending"`
	Applied   vehicle.Config         `json:"applied"`
	Bounds    vehicle.Bounds         `json:"axle_bounds"`
	Scheme    vehicle.Scheme         `json:"scheme"`
	Counts    map[vehicle.Status]int `json:"status_counts,omitempty"`
	Selected  string                 `json:"selected,omitempty"`
	Wheel     *vehicle.WheelInfo     `json:"wheel,omitempty"`
	SVG       string                 `json:"svg,omitempty"`
}

// View renders s for the browser.
func (s VizState) View() (*VizView, error) {
	svg, err := s.SVG()
	if err != nil {
		return nil, err
	}

	bounds, _ := vehicle.BoundsFor(s.Pending.Type)
	v := &VizView{
		Mode:      s.Mode,
		Viewport:  s.Viewport,
		Transform: s.Viewport.String(),
		Pending:   s.Pending,
		Applied:   s.Applied,
		Bounds:    bounds,
		Scheme:    s.Plan.Scheme,
		Counts:    s.Model.StatusCounts(),
		Selected:  s.Selected,
		SVG:       svg,
	}
	if s.Selected != "" {
		v.Wheel, _ = s.Model.WheelInfo(s.Selected)
	}
	return v, nil
}
