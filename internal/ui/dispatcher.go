package ui

import (
	"context"
	"errors"

	"github.com/KevinKickass/FleetView/internal/auth"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/KevinKickass/FleetView/internal/vehicle"
	"go.uber.org/zap"
)

// ErrSessionEnded is returned when the session lost its authentication and
// the connection should be told to go back to the login page.
var ErrSessionEnded = errors.New("session ended")

type UpdateKind string

const (
	UpdateNav   UpdateKind = "nav"
	UpdateViz   UpdateKind = "viz"
	UpdateShell UpdateKind = "shell"
	UpdateError UpdateKind = "error"
)

// Update is one state change to push to the browser.
type Update struct {
	Kind UpdateKind
	Data any
}

type ErrorView struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// Event is a message from the browser.
type Event struct {
	Type       string  `json:"type"`
	Section    string  `json:"section,omitempty"`
	Width      int     `json:"width,omitempty"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Background bool    `json:"background,omitempty"`
	WheelID    string  `json:"wheel_id,omitempty"`
	Value      string  `json:"value,omitempty"`
	Axles      int     `json:"axles,omitempty"`
}

// EventRetry reloads the profile after the shell went into its error phase.
const EventRetry = "retry"

// ProfileLoader is satisfied by auth.ProfileService.
type ProfileLoader interface {
	Load(ctx context.Context, sess *session.Session) (*auth.ProfileResult, error)
}

// Dispatcher owns the UI state of one browser connection. It is not safe for
// concurrent use; the connection's read loop is its only caller.
type Dispatcher struct {
	sess      *session.Session
	profiles  ProfileLoader
	builder   Builder
	rnd       vehicle.Rand
	reportURL string
	logger    *zap.Logger

	nav   NavState
	viz   VizState
	shell ShellState
}

func NewDispatcher(
	sess *session.Session,
	profiles ProfileLoader,
	builder Builder,
	rnd vehicle.Rand,
	reportURL string,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		sess:      sess,
		profiles:  profiles,
		builder:   builder,
		rnd:       rnd,
		reportURL: reportURL,
		logger:    logger,
		shell:     NewShell(),
	}
}

// Start loads the profile and builds the initial state. It returns
// ErrSessionEnded when the upstream no longer accepts the token.
func (d *Dispatcher) Start(ctx context.Context) ([]Update, error) {
	d.nav = NewNav(d.sess.SidebarCollapsed(ctx))

	if err := d.loadProfile(ctx); err != nil {
		return nil, err
	}
	d.shell, _ = ReduceShell(d.shell, ShellEvent{Kind: ShellAlerts, Alerts: SimulateAlerts(d.rnd)})

	updates := []Update{
		{Kind: UpdateNav, Data: d.nav.View(NavEffects{})},
		{Kind: UpdateShell, Data: d.shell},
	}

	viz, err := InitViz(d.builder)
	if err != nil {
		d.logger.Error("Failed to build initial vehicle", zap.Error(err))
		return append(updates, errorUpdate("", err)), nil
	}
	d.viz = viz

	return append(updates, d.vizUpdate(true)), nil
}

func (d *Dispatcher) loadProfile(ctx context.Context) error {
	res, err := d.profiles.Load(ctx, d.sess)
	switch {
	case err == nil:
		d.shell, _ = ReduceShell(d.shell, ShellEvent{
			Kind:    ShellProfileLoaded,
			Profile: res.Profile,
			Cached:  res.Cached,
			Message: res.Warning,
		})
	case types.IsKind(err, types.KindAuthExpired):
		return ErrSessionEnded
	default:
		d.shell, _ = ReduceShell(d.shell, ShellEvent{Kind: ShellProfileFailed, Message: auth.UserMessage(err)})
	}
	return nil
}

// Handle reduces one browser event. Invalid events produce an error update
// and leave the state unchanged.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) ([]Update, error) {
	switch kind := ev.Type; {
	case isNavEvent(kind):
		return d.handleNav(ctx, ev), nil

	case isShellEvent(kind):
		next, err := ReduceShell(d.shell, ShellEvent{Kind: ShellEventKind(kind)})
		if err != nil {
			return []Update{errorUpdate(kind, err)}, nil
		}
		d.shell = next
		return []Update{{Kind: UpdateShell, Data: d.shell}}, nil

	case kind == EventRetry:
		d.shell = NewShell()
		if err := d.loadProfile(ctx); err != nil {
			return nil, err
		}
		return []Update{{Kind: UpdateShell, Data: d.shell}}, nil

	case isVizEvent(kind):
		return d.handleViz(ev), nil
	}

	return []Update{{Kind: UpdateError, Data: ErrorView{Event: ev.Type, Message: "unknown event type"}}}, nil
}

func (d *Dispatcher) handleNav(ctx context.Context, ev Event) []Update {
	next, fx, err := ReduceNav(d.nav, NavEvent{Kind: NavEventKind(ev.Type), Fragment: ev.Section, Width: ev.Width}, d.reportURL)
	if err != nil {
		return []Update{errorUpdate(ev.Type, err)}
	}
	d.nav = next

	if fx.PersistSidebar {
		if err := d.sess.SetSidebarCollapsed(ctx, d.nav.SidebarCollapsed); err != nil {
			d.logger.Warn("Failed to persist sidebar state", zap.Error(err))
		}
	}
	if fx.LoadReport != "" {
		d.logger.Debug("Embedding report", zap.String("session", d.sess.ID))
	}

	return []Update{{Kind: UpdateNav, Data: d.nav.View(fx)}}
}

func (d *Dispatcher) handleViz(ev Event) []Update {
	kind := VizEventKind(ev.Type)
	prev := d.viz

	next, err := ReduceViz(d.viz, VizEvent{
		Kind:       kind,
		X:          ev.X,
		Y:          ev.Y,
		Background: ev.Background,
		WheelID:    ev.WheelID,
		Value:      ev.Value,
		Axles:      ev.Axles,
	}, d.builder)
	if err != nil {
		return []Update{errorUpdate(ev.Type, err)}
	}
	d.viz = next

	switch kind {
	case VizPointerDown, VizPointerMove, VizPointerUp, VizZoomIn, VizZoomOut, VizReset:
		if next.Viewport == prev.Viewport && next.Mode == prev.Mode {
			return nil
		}
		return []Update{d.vizUpdate(false)}
	}
	return []Update{d.vizUpdate(true)}
}

// vizUpdate renders the visualization. Without withSVG only the viewport
// fields are sent; the browser applies the transform to the existing drawing.
func (d *Dispatcher) vizUpdate(withSVG bool) Update {
	if !withSVG {
		return Update{Kind: UpdateViz, Data: &VizView{
			Mode:      d.viz.Mode,
			Viewport:  d.viz.Viewport,
			Transform: d.viz.Viewport.String(),
			Pending:   d.viz.Pending,
			Applied:   d.viz.Applied,
			Selected:  d.viz.Selected,
		}}
	}

	view, err := d.viz.View()
	if err != nil {
		d.logger.Error("Failed to render vehicle", zap.Error(err))
		return errorUpdate("", err)
	}
	return Update{Kind: UpdateViz, Data: view}
}

// State exposes the current reducer states, for rendering pages and tests.
func (d *Dispatcher) State() (NavState, ShellState, VizState) {
	return d.nav, d.shell, d.viz
}

func errorUpdate(event string, err error) Update {
	return Update{Kind: UpdateError, Data: ErrorView{Event: event, Message: err.Error()}}
}

func isNavEvent(kind string) bool {
	switch NavEventKind(kind) {
	case NavNavigate, NavToggleSidebar, NavToggleMobile, NavClickOutside, NavResize:
		return true
	}
	return false
}

func isShellEvent(kind string) bool {
	switch ShellEventKind(kind) {
	case ShellToggleDropdown, ShellToggleMobile, ShellClickOutside:
		return true
	}
	return false
}

func isVizEvent(kind string) bool {
	switch VizEventKind(kind) {
	case VizPointerDown, VizPointerMove, VizPointerUp, VizZoomIn, VizZoomOut, VizReset,
		VizSelectWheel, VizSetType, VizSetAxles, VizSetWheels, VizSetStatus, VizApply:
		return true
	}
	return false
}
