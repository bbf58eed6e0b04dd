package rest

import (
	"embed"
	"net/http"

	"github.com/KevinKickass/FleetView/internal/api/websocket"
	"github.com/KevinKickass/FleetView/internal/auth"
	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/ui"
	"github.com/KevinKickass/FleetView/internal/vehicle"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var pageFS embed.FS

type loginView struct {
	Error      string
	Username   string
	Switchable bool
	Preference string
}

type navLink struct {
	Section ui.Section
	Title   string
}

type dashboardView struct {
	Username         string
	Sections         []navLink
	SidebarCollapsed bool
	ReportTitle      string
	Types            []vehicle.Type
}

func (s *Server) loginPage(c *gin.Context) {
	sess := session.FromContext(c)
	c.HTML(http.StatusOK, "login.html", s.loginData(c, sess, "", ""))
}

// POST /login, form fields username, password and optionally endpoint.
func (s *Server) loginSubmit(c *gin.Context) {
	sess := session.FromContext(c)
	ctx := c.Request.Context()
	username := c.PostForm("username")

	if endpoint := c.PostForm("endpoint"); endpoint != "" && s.cfg.AllowEndpointSwitch() {
		if validEndpoint(endpoint) {
			if err := sess.SetAPIPreference(ctx, endpoint); err != nil {
				s.logger.Warn("Failed to store endpoint preference", zap.Error(err))
			}
		}
	}

	if err := s.svc.Login.Login(ctx, sess, username, c.PostForm("password")); err != nil {
		c.HTML(http.StatusUnauthorized, "login.html", s.loginData(c, sess, username, auth.LoginMessage(err)))
		return
	}

	c.Redirect(http.StatusSeeOther, auth.DashboardPath)
}

func (s *Server) loginData(c *gin.Context, sess *session.Session, username, errMsg string) loginView {
	pref := config.EndpointProduction
	if p := sess.APIPreference(c.Request.Context()); p != "" {
		pref = p
	}
	return loginView{
		Error:      errMsg,
		Username:   username,
		Switchable: s.cfg.AllowEndpointSwitch(),
		Preference: pref,
	}
}

func (s *Server) dashboardPage(c *gin.Context) {
	sess := session.FromContext(c)
	ctx := c.Request.Context()

	links := make([]navLink, 0, len(ui.Sections()))
	for _, sec := range ui.Sections() {
		links = append(links, navLink{Section: sec, Title: sec.Title()})
	}

	c.HTML(http.StatusOK, "dashboard.html", dashboardView{
		Username:         sess.Username(ctx),
		Sections:         links,
		SidebarCollapsed: sess.SidebarCollapsed(ctx),
		ReportTitle:      s.cfg.Report.Title,
		Types:            vehicle.Types(),
	})
}

// POST /logout clears the identity and closes the session on every open tab.
func (s *Server) logout(c *gin.Context) {
	sess := session.FromContext(c)
	if err := sess.ClearAuth(c.Request.Context()); err != nil {
		s.logger.Error("Failed to clear session on logout", zap.Error(err))
	}
	s.wsHub.EndSession(sess.ID, "logout", websocket.LoginRedirect)

	s.logger.Info("User logged out", zap.String("session", sess.ID))
	c.Redirect(http.StatusSeeOther, auth.LoginPath)
}

func validEndpoint(p string) bool {
	return p == config.EndpointLocal || p == config.EndpointProduction
}
