package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(config.APIConfig{
		LoginPath:       "/auth/login",
		UserDetailsPath: "/user/details/",
		Timeout:         5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNormalizeAuthorization(t *testing.T) {
	tests := []struct {
		in, bearer, raw string
	}{
		{"Bearer abc", "Bearer abc", "abc"},
		{"bearer abc", "Bearer abc", "abc"},
		{"BEARER   abc ", "Bearer abc", "abc"},
		{"abc", "Bearer abc", "abc"},
		{"Bearerabc", "Bearer Bearerabc", "Bearerabc"},
		{"", "", ""},
		{"Bearer ", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bearer, raw := NormalizeAuthorization(tt.in)
			assert.Equal(t, tt.bearer, bearer)
			assert.Equal(t, tt.raw, raw)
		})
	}
}

func TestLogin_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var creds Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "ana", creds.Username)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"tok-123","expires_in":3600}`))
	}))
	defer server.Close()

	res, err := newTestClient(t).Login(context.Background(), server.URL+"/", Credentials{Username: "ana", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", res.Token)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, `{"token":"tok-123","expires_in":3600}`, string(res.Body))
}

func TestForwardLogin_BodyUnchanged(t *testing.T) {
	const body = `{"username":"ana","remember":true}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, body, string(got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"password is required"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t).ForwardLogin(context.Background(), server.URL, []byte(body))
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, e.Status)
	assert.JSONEq(t, `{"message":"password is required"}`, string(e.Body))
}

func TestLogin_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid username or password"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t).Login(context.Background(), server.URL, Credentials{Username: "ana", Password: "nope"})
	require.Error(t, err)

	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.KindUpstreamRejected, e.Kind)
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Equal(t, "Invalid username or password", e.Message)
	assert.JSONEq(t, `{"message":"Invalid username or password"}`, string(e.Body))
}

func TestLogin_NoResponse(t *testing.T) {
	_, err := newTestClient(t).Login(context.Background(), "http://127.0.0.1:1", Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.Equal(t, types.KindNetworkFailure, types.KindOf(err))
}

func TestProfile_RetriesWithRawToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "raw-token" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":"bad header"}`))
			return
		}
		w.Write([]byte(`{"user_name":"ana","email":"ana@example.com"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t).Profile(context.Background(), server.URL, "bearer raw-token")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.JSONEq(t, `{"user_name":"ana","email":"ana@example.com"}`, string(resp.Body))
}

func TestProfile_RetryFailureSurfacesFirstError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"first"}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"second"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t).Profile(context.Background(), server.URL, "Bearer tok")
	require.Error(t, err)

	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Equal(t, types.KindAuthExpired, e.Kind)
	assert.JSONEq(t, `{"message":"first"}`, string(e.Body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestProfile_NoRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(t).Profile(context.Background(), server.URL, "Bearer tok")
	require.Error(t, err)
	assert.Equal(t, types.KindNetworkFailure, types.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchProfile(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind types.Kind
	}{
		{"valid", `{"user_name":"ana","email":"ana@example.com","phone_number":"+44"}`, ""},
		{"empty body", ``, types.KindMalformedResponse},
		{"not json", `<html>`, types.KindMalformedResponse},
		{"empty object", `{}`, types.KindMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, err := newTestClient(t).FetchProfile(context.Background(), server.URL, "tok")
			if tt.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, "ana", p.UserName)
				assert.Equal(t, "+44", p.DisplayPhone())
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, types.KindOf(err))
		})
	}
}
