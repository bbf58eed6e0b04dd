package devauth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher()

	hash, err := h.Hash("secret")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$")

	ok, err := h.Verify("secret", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify("secret", "$bcrypt$nope")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("a-test-secret-that-is-long-enough", time.Hour)

	token, err := issuer.Issue("ana", "admin")
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ana", claims.Username)
	assert.Equal(t, "admin", claims.Role)

	other := NewTokenIssuer("another-secret-that-is-long-enough", time.Hour)
	_, err = other.Validate(token)
	assert.Error(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.Validate(token)
	assert.Error(t, err)
}

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := NewService(config.DevUpstreamConfig{
		JWTSecretEnv: "FLEETVIEW_TEST_UNSET_SECRET",
		TokenTTL:     time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.AddUserWithPassword(config.DevUser{
		Username: "ana",
		Email:    "ana@example.com",
		Role:     "manager",
	}, "secret"))

	r := gin.New()
	svc.Register(r, "/auth/login", "/user/details/")
	return r, svc
}

func login(t *testing.T, r *gin.Engine, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestService_AddUserRejectsPlainPassword(t *testing.T) {
	_, svc := newTestRouter(t)
	err := svc.AddUser(config.DevUser{Username: "bob", PasswordHash: "hunter2"})
	assert.ErrorIs(t, err, ErrInvalidHash)
	assert.Equal(t, 1, svc.UserCount())
}

func TestHandlers_LoginAndDetails(t *testing.T) {
	r, _ := newTestRouter(t)

	w := login(t, r, "ana", "secret")
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, 3600, resp.ExpiresIn)

	for _, header := range []string{"Bearer " + resp.Token, "bearer " + resp.Token, resp.Token} {
		req := httptest.NewRequest(http.MethodGet, "/user/details/", nil)
		req.Header.Set("Authorization", header)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, header)
		assert.JSONEq(t, `{"user_name":"ana","email":"ana@example.com","role":"manager"}`, w.Body.String())
	}
}

func TestHandlers_LoginRejected(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, creds := range [][2]string{{"ana", "wrong"}, {"nobody", "secret"}} {
		w := login(t, r, creds[0], creds[1])
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"message":"Invalid username or password"}`, w.Body.String())
	}
}

func TestHandlers_DetailsRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/user/details/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/user/details/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
