package ui

import (
	"fmt"
	"strings"
)

type Section string

const (
	SectionDashboard Section = "dashboard"
	SectionFleet     Section = "fleet"
	SectionVehicles  Section = "vehicles"
	SectionAccount   Section = "account"
)

// MobileBreakpoint is the viewport width below which the sidebar is an
// overlay that closes after navigation.
const MobileBreakpoint = 768

var sectionTitles = map[Section]string{
	SectionDashboard: "Dashboard",
	SectionFleet:     "Fleet Analysis",
	SectionVehicles:  "Vehicle Visualization",
	SectionAccount:   "Account",
}

// Sections lists sidebar entries in display order.
func Sections() []Section {
	return []Section{SectionDashboard, SectionFleet, SectionVehicles, SectionAccount}
}

func (s Section) Title() string { return sectionTitles[s] }

// ResolveSection maps a URL fragment ("#fleet", "fleet") to a section.
// Unknown or empty fragments resolve to the dashboard.
func ResolveSection(fragment string) Section {
	s := Section(strings.TrimPrefix(strings.TrimSpace(fragment), "#"))
	if _, ok := sectionTitles[s]; ok {
		return s
	}
	return SectionDashboard
}

type NavEventKind string

const (
	NavNavigate      NavEventKind = "navigate"
	NavToggleSidebar NavEventKind = "toggle_sidebar"
	NavToggleMobile  NavEventKind = "toggle_mobile_sidebar"
	NavClickOutside  NavEventKind = "click_outside_sidebar"
	NavResize        NavEventKind = "resize"
)

type NavEvent struct {
	Kind     NavEventKind
	Fragment string
	// Width is the viewport width in CSS pixels.
	Width int
}

type NavState struct {
	Active           Section
	SidebarCollapsed bool
	MobileOpen       bool
	ReportLoaded     bool
}

// NavEffects are the side effects a transition asks for.
type NavEffects struct {
	// LoadReport is the report URL to embed, set on the first entry into the
	// fleet section only.
	LoadReport     string
	PersistSidebar bool
}

// NewNav starts on the dashboard with the persisted sidebar state.
func NewNav(sidebarCollapsed bool) NavState {
	return NavState{Active: SectionDashboard, SidebarCollapsed: sidebarCollapsed}
}

func ReduceNav(s NavState, ev NavEvent, reportURL string) (NavState, NavEffects, error) {
	var fx NavEffects

	switch ev.Kind {
	case NavNavigate:
		s.Active = ResolveSection(ev.Fragment)
		if s.Active == SectionFleet && !s.ReportLoaded {
			s.ReportLoaded = true
			fx.LoadReport = reportURL
		}
		if ev.Width > 0 && ev.Width < MobileBreakpoint {
			s.MobileOpen = false
		}

	case NavToggleSidebar:
		s.SidebarCollapsed = !s.SidebarCollapsed
		fx.PersistSidebar = true

	case NavToggleMobile:
		s.MobileOpen = !s.MobileOpen

	case NavClickOutside:
		if ev.Width < MobileBreakpoint {
			s.MobileOpen = false
		}

	case NavResize:
		if ev.Width >= MobileBreakpoint {
			s.MobileOpen = false
		}

	default:
		return s, fx, fmt.Errorf("unknown navigation event: %s", ev.Kind)
	}

	return s, fx, nil
}

// NavView is the navigation update sent to the browser.
type NavView struct {
	Active     Section `json:"active"`
	Title      string  `json:"title"`
	Sidebar    string  `json:"sidebar"`
	MobileOpen bool    `json:"mobile_open"`
	ReportURL  string  `json:"report_url,omitempty"`
}

func (s NavState) View(fx NavEffects) NavView {
	sidebar := "expanded"
	if s.SidebarCollapsed {
		sidebar = "collapsed"
	}
	return NavView{
		Active:     s.Active,
		Title:      s.Active.Title(),
		Sidebar:    sidebar,
		MobileOpen: s.MobileOpen,
		ReportURL:  fx.LoadReport,
	}
}
