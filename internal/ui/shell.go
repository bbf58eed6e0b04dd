package ui

import (
	"fmt"

	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/KevinKickass/FleetView/internal/vehicle"
)

type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseContent Phase = "content"
	PhaseError   Phase = "error"
)

type ShellEventKind string

const (
	ShellProfileLoaded  ShellEventKind = "profile_loaded"
	ShellProfileFailed  ShellEventKind = "profile_failed"
	ShellToggleDropdown ShellEventKind = "toggle_dropdown"
	ShellToggleMobile   ShellEventKind = "toggle_mobile_menu"
	ShellClickOutside   ShellEventKind = "click_outside"
	ShellAlerts         ShellEventKind = "alerts"
)

type ShellEvent struct {
	Kind    ShellEventKind
	Profile *types.Profile
	Cached  bool
	Message string
	Alerts  int
}

// ProfileView holds the profile fields as displayed.
type ProfileView struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone_number"`
	Role     string `json:"role,omitempty"`
}

func NewProfileView(p *types.Profile) ProfileView {
	return ProfileView{
		UserName: p.DisplayName(),
		Email:    p.DisplayEmail(),
		Phone:    p.DisplayPhone(),
		Role:     p.DisplayRole(),
	}
}

type ShellState struct {
	Phase          Phase        `json:"phase"`
	Profile        *ProfileView `json:"profile,omitempty"`
	Cached         bool         `json:"cached"`
	Warning        string       `json:"warning,omitempty"`
	Error          string       `json:"error,omitempty"`
	DropdownOpen   bool         `json:"dropdown_open"`
	MobileMenuOpen bool         `json:"mobile_menu_open"`
	AlertCount     int          `json:"alert_count"`
}

func NewShell() ShellState {
	return ShellState{Phase: PhaseLoading}
}

func ReduceShell(s ShellState, ev ShellEvent) (ShellState, error) {
	switch ev.Kind {
	case ShellProfileLoaded:
		view := NewProfileView(ev.Profile)
		s.Phase = PhaseContent
		s.Profile = &view
		s.Cached = ev.Cached
		s.Warning = ev.Message
		s.Error = ""

	case ShellProfileFailed:
		s.Phase = PhaseError
		s.Error = ev.Message

	case ShellToggleDropdown:
		s.DropdownOpen = !s.DropdownOpen

	case ShellToggleMobile:
		s.MobileMenuOpen = !s.MobileMenuOpen

	case ShellClickOutside:
		s.DropdownOpen = false

	case ShellAlerts:
		s.AlertCount = max(ev.Alerts, 0)

	default:
		return s, fmt.Errorf("unknown shell event: %s", ev.Kind)
	}

	return s, nil
}

const alertProbability = 0.7

// SimulateAlerts draws a fleet alert count: 1 to 5 with 70% probability,
// otherwise none.
func SimulateAlerts(r vehicle.Rand) int {
	if r.Float64() < alertProbability {
		return int(r.Float64()*5) + 1
	}
	return 0
}
