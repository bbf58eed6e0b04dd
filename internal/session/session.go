package session

import (
	"context"
	"net/http"
	"time"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const contextKey = "session"

// Session is one browser's view of the store, with typed accessors for the
// keys the dashboard uses.
type Session struct {
	ID    string
	store Store
	keys  config.StorageKeys
}

func New(id string, store Store, keys config.StorageKeys) *Session {
	return &Session{ID: id, store: store, keys: keys}
}

func (s *Session) get(ctx context.Context, key string) string {
	v, _, err := s.store.Get(ctx, s.ID, key)
	if err != nil {
		return ""
	}
	return v
}

func (s *Session) Token(ctx context.Context) string    { return s.get(ctx, s.keys.AuthToken) }
func (s *Session) Username(ctx context.Context) string { return s.get(ctx, s.keys.Username) }
func (s *Session) UserData(ctx context.Context) string { return s.get(ctx, s.keys.UserData) }

func (s *Session) SetToken(ctx context.Context, token string) error {
	return s.store.Set(ctx, s.ID, s.keys.AuthToken, token)
}

func (s *Session) SetUsername(ctx context.Context, username string) error {
	return s.store.Set(ctx, s.ID, s.keys.Username, username)
}

func (s *Session) SetUserData(ctx context.Context, data string) error {
	return s.store.Set(ctx, s.ID, s.keys.UserData, data)
}

// SidebarCollapsed reads sidebarState; anything other than "collapsed" is expanded.
func (s *Session) SidebarCollapsed(ctx context.Context) bool {
	return s.get(ctx, s.keys.SidebarState) == "collapsed"
}

func (s *Session) SetSidebarCollapsed(ctx context.Context, collapsed bool) error {
	state := "expanded"
	if collapsed {
		state = "collapsed"
	}
	return s.store.Set(ctx, s.ID, s.keys.SidebarState, state)
}

// APIPreference returns the stored endpoint preference, or "" when unset.
func (s *Session) APIPreference(ctx context.Context) string {
	return s.get(ctx, s.keys.APIPreference)
}

func (s *Session) SetAPIPreference(ctx context.Context, pref string) error {
	return s.store.Set(ctx, s.ID, s.keys.APIPreference, pref)
}

// ClearAuth removes the token and cached identity. UI preferences survive.
func (s *Session) ClearAuth(ctx context.Context) error {
	return s.store.Delete(ctx, s.ID, s.keys.AuthToken, s.keys.Username, s.keys.UserData)
}

// Manager binds sessions to requests through a cookie.
type Manager struct {
	store  Store
	keys   config.StorageKeys
	cookie string
	ttl    time.Duration
	secure bool
}

func NewManager(store Store, cfg config.SessionConfig, keys config.StorageKeys, secure bool) *Manager {
	return &Manager{
		store:  store,
		keys:   keys,
		cookie: cfg.CookieName,
		ttl:    cfg.TTL,
		secure: secure,
	}
}

// Middleware attaches a Session to every request, issuing a cookie when the
// browser has none.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(m.cookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.New().String()
		}
		m.setCookie(c, id)
		c.Set(contextKey, New(id, m.store, m.keys))
		c.Next()
	}
}

func (m *Manager) setCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie, id, int(m.ttl.Seconds()), "/", "", m.secure, true)
}

// FromContext returns the session attached by Middleware.
func FromContext(c *gin.Context) *Session {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
