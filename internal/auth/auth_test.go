package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/KevinKickass/FleetView/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testKeys = config.StorageKeys{
	AuthToken:     "authToken",
	Username:      "username",
	UserData:      "user_data",
	SidebarState:  "sidebarState",
	APIPreference: "apiEndpointPreference",
}

func testConfig(base string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "production"},
		API: config.APIConfig{
			Endpoints:       config.EndpointOptions{Production: base},
			LoginPath:       "/auth/login",
			UserDetailsPath: "/user/details/",
			Timeout:         5 * time.Second,
		},
		Storage: testKeys,
		Session: config.SessionConfig{CookieName: "sid", TTL: time.Hour},
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ana",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

// fakeUpstream answers login for ana/secret and serves profileStatus on details.
func fakeUpstream(t *testing.T, token string, profileStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds upstream.Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Username != "ana" || creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid username or password"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("/user/details/", func(w http.ResponseWriter, r *http.Request) {
		if profileStatus != http.StatusOK {
			w.WriteHeader(profileStatus)
			w.Write([]byte(`{"message":"nope"}`))
			return
		}
		w.Write([]byte(`{"user_name":"ana","email":"ana@example.com","role":"admin"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, cfg *config.Config) *upstream.Client {
	t.Helper()
	c, err := upstream.NewClient(cfg.API, zap.NewNop())
	require.NoError(t, err)
	return c
}

func newSession() *session.Session {
	return session.New(uuid.NewString(), session.NewMemoryStore(time.Hour), testKeys)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, TokenExpired(signedToken(t, now.Add(-time.Minute)), now))
	assert.False(t, TokenExpired(signedToken(t, now.Add(time.Hour)), now))
	assert.False(t, TokenExpired("opaque-token", now))
}

func TestLogin_WrongCredentials(t *testing.T) {
	server := fakeUpstream(t, "tok", http.StatusOK)
	cfg := testConfig(server.URL)
	flow := NewLoginFlow(newClient(t, cfg), cfg, zap.NewNop())
	sess := newSession()
	ctx := context.Background()

	err := flow.Login(ctx, sess, "ana", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Login failed: Invalid username or password", LoginMessage(err))
	assert.Equal(t, types.KindUpstreamRejected, types.KindOf(err))
	assert.Empty(t, sess.Token(ctx))
	assert.Empty(t, sess.Username(ctx))
}

func TestLogin_MissingFields(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	flow := NewLoginFlow(newClient(t, cfg), cfg, zap.NewNop())

	err := flow.Login(context.Background(), newSession(), "  ", "pw")
	require.Error(t, err)
	assert.Equal(t, "Please enter username and password", LoginMessage(err))
}

func TestLogin_Success(t *testing.T) {
	server := fakeUpstream(t, "tok-abc", http.StatusOK)
	cfg := testConfig(server.URL)
	flow := NewLoginFlow(newClient(t, cfg), cfg, zap.NewNop())
	sess := newSession()
	ctx := context.Background()

	require.NoError(t, flow.Login(ctx, sess, "ana", "secret"))
	assert.Equal(t, "tok-abc", sess.Token(ctx))
	assert.Equal(t, "ana", sess.Username(ctx))
	assert.JSONEq(t, `{"user_name":"ana","email":"ana@example.com","role":"admin"}`, sess.UserData(ctx))
}

func TestLogin_VerificationUnauthorizedClearsSession(t *testing.T) {
	server := fakeUpstream(t, "tok-abc", http.StatusUnauthorized)
	cfg := testConfig(server.URL)
	flow := NewLoginFlow(newClient(t, cfg), cfg, zap.NewNop())
	sess := newSession()
	ctx := context.Background()

	err := flow.Login(ctx, sess, "ana", "secret")
	require.Error(t, err)
	assert.Equal(t, types.KindAuthExpired, types.KindOf(err))
	assert.Empty(t, sess.Token(ctx))
}

func TestLogin_VerificationFailureStillLogsIn(t *testing.T) {
	server := fakeUpstream(t, "tok-abc", http.StatusBadGateway)
	cfg := testConfig(server.URL)
	flow := NewLoginFlow(newClient(t, cfg), cfg, zap.NewNop())
	sess := newSession()
	ctx := context.Background()

	require.NoError(t, flow.Login(ctx, sess, "ana", "secret"))
	assert.Equal(t, "tok-abc", sess.Token(ctx))
	assert.Empty(t, sess.UserData(ctx))
}

func TestProfile_UnauthorizedClearsSession(t *testing.T) {
	server := fakeUpstream(t, "tok", http.StatusUnauthorized)
	cfg := testConfig(server.URL)
	svc := NewProfileService(newClient(t, cfg), cfg, zap.NewNop())
	sess := newSession()
	ctx := context.Background()
	require.NoError(t, sess.SetToken(ctx, "tok"))
	require.NoError(t, sess.SetUserData(ctx, `{"user_name":"old","email":"o@example.com"}`))

	_, err := svc.Load(ctx, sess)
	require.Error(t, err)
	assert.Equal(t, types.KindAuthExpired, types.KindOf(err))
	assert.Empty(t, sess.Token(ctx))
	assert.Empty(t, sess.UserData(ctx))
}

func TestProfile_FallsBackToCache(t *testing.T) {
	server := fakeUpstream(t, "tok", http.StatusInternalServerError)
	cfg := testConfig(server.URL)
	svc := NewProfileService(newClient(t, cfg), cfg, zap.NewNop())
	sess := newSession()
	ctx := context.Background()
	require.NoError(t, sess.SetToken(ctx, "tok"))
	require.NoError(t, sess.SetUserData(ctx, `{"user_name":"old","email":"o@example.com"}`))

	res, err := svc.Load(ctx, sess)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "old", res.Profile.DisplayName())
	assert.Equal(t, "Failed to load user data. Please try again.", res.Warning)
}

func TestProfile_HardFailureWithoutCache(t *testing.T) {
	server := fakeUpstream(t, "tok", http.StatusInternalServerError)
	cfg := testConfig(server.URL)
	svc := NewProfileService(newClient(t, cfg), cfg, zap.NewNop())
	sess := newSession()
	ctx := context.Background()
	require.NoError(t, sess.SetToken(ctx, "tok"))

	_, err := svc.Load(ctx, sess)
	require.Error(t, err)
	assert.Equal(t, types.KindNetworkFailure, types.KindOf(err))
	assert.Equal(t, "tok", sess.Token(ctx))
}

func TestProfile_Success(t *testing.T) {
	server := fakeUpstream(t, "tok", http.StatusOK)
	cfg := testConfig(server.URL)
	svc := NewProfileService(newClient(t, cfg), cfg, zap.NewNop())
	sess := newSession()
	ctx := context.Background()
	require.NoError(t, sess.SetToken(ctx, "tok"))

	res, err := svc.Load(ctx, sess)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "Admin", res.Profile.DisplayRole())
	assert.NotEmpty(t, sess.UserData(ctx))
}

func guardRouter(t *testing.T, store session.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig("http://unused")
	mgr := session.NewManager(store, cfg.Session, testKeys, false)
	guard := NewGuard(zap.NewNop())

	r := gin.New()
	r.Use(mgr.Middleware())
	r.GET("/login", guard.RedirectAuthenticated(), func(c *gin.Context) { c.String(http.StatusOK, "login") })
	r.GET("/dashboard", guard.RequirePage(), func(c *gin.Context) { c.String(http.StatusOK, TokenFromContext(c)) })
	r.GET("/api/thing", guard.RequireAPI(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func requestWithSession(method, path, id string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: id})
	}
	return req
}

func TestGuard(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	router := guardRouter(t, store)
	ctx := context.Background()

	t.Run("page without token redirects", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, requestWithSession(http.MethodGet, "/dashboard", ""))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, LoginPath, w.Header().Get("Location"))
	})

	t.Run("api without token is 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, requestWithSession(http.MethodGet, "/api/thing", ""))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token passes", func(t *testing.T) {
		id := uuid.NewString()
		tok := signedToken(t, time.Now().Add(time.Hour))
		require.NoError(t, store.Set(ctx, id, testKeys.AuthToken, tok))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, requestWithSession(http.MethodGet, "/dashboard", id))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tok, w.Body.String())

		w = httptest.NewRecorder()
		router.ServeHTTP(w, requestWithSession(http.MethodGet, "/login", id))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, DashboardPath, w.Header().Get("Location"))
	})

	t.Run("expired token clears session", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, store.Set(ctx, id, testKeys.AuthToken, signedToken(t, time.Now().Add(-time.Hour))))
		require.NoError(t, store.Set(ctx, id, testKeys.Username, "ana"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, requestWithSession(http.MethodGet, "/dashboard", id))
		assert.Equal(t, http.StatusSeeOther, w.Code)

		_, ok, err := store.Get(ctx, id, testKeys.AuthToken)
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, _ = store.Get(ctx, id, testKeys.Username)
		assert.False(t, ok)
	})
}
