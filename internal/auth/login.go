package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/KevinKickass/FleetView/internal/upstream"
	"go.uber.org/zap"
)

// LoginError is a failed login with the message shown in the banner.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }
func (e *LoginError) Unwrap() error { return e.Err }

// LoginFlow exchanges credentials for a token and stores it in the session.
type LoginFlow struct {
	client *upstream.Client
	cfg    *config.Config
	logger *zap.Logger
}

func NewLoginFlow(client *upstream.Client, cfg *config.Config, logger *zap.Logger) *LoginFlow {
	return &LoginFlow{client: client, cfg: cfg, logger: logger}
}

// Login authenticates against upstream, stores authToken and username, then
// verifies the token once by fetching the profile. Rejections never store a
// token. A verification failure other than AuthExpired is logged and the login
// still succeeds.
func (f *LoginFlow) Login(ctx context.Context, sess *session.Session, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return &LoginError{Message: "Please enter username and password"}
	}

	baseURL := ResolveBaseURL(ctx, f.cfg, sess)
	result, err := f.client.Login(ctx, baseURL, upstream.Credentials{Username: username, Password: password})
	if err != nil {
		return f.loginError(err)
	}

	if result.Token == "" {
		msg := result.Message
		if msg == "" {
			msg = "Invalid credentials"
		}
		f.logger.Warn("Login response carried no token", zap.String("username", username))
		return &LoginError{Message: "Login failed: " + msg}
	}

	if err := sess.SetToken(ctx, result.Token); err != nil {
		return &LoginError{Message: "Error during login. Please try again.", Err: err}
	}
	if err := sess.SetUsername(ctx, username); err != nil {
		return &LoginError{Message: "Error during login. Please try again.", Err: err}
	}

	f.logger.Info("Login successful, verifying token", zap.String("username", username))

	profile, err := f.client.FetchProfile(ctx, baseURL, result.Token)
	switch {
	case err == nil:
		if err := sess.SetUserData(ctx, string(profile.Raw)); err != nil {
			f.logger.Warn("Failed to cache user data", zap.Error(err))
		}
	case types.IsKind(err, types.KindAuthExpired):
		if clearErr := sess.ClearAuth(ctx); clearErr != nil {
			f.logger.Warn("Failed to clear session", zap.Error(clearErr))
		}
		return &LoginError{Message: "Token verification failed. Please log in again.", Err: err}
	default:
		f.logger.Warn("Token verification failed, continuing", zap.Error(err))
	}

	return nil
}

func (f *LoginFlow) loginError(err error) error {
	e, ok := types.AsError(err)
	if ok && e.Kind == types.KindUpstreamRejected {
		msg := e.Message
		if msg == "" {
			msg = "Invalid credentials"
		}
		f.logger.Info("Login rejected by upstream", zap.Int("status", e.Status))
		return &LoginError{Message: "Login failed: " + msg, Err: err}
	}

	f.logger.Error("Error during login", zap.Error(err))
	return &LoginError{Message: "Error during login. Please try again later.", Err: err}
}

// ResolveBaseURL picks the upstream base for a session: the stored endpoint
// preference in development, always production otherwise.
func ResolveBaseURL(ctx context.Context, cfg *config.Config, sess *session.Session) string {
	pref := ""
	if sess != nil && cfg.AllowEndpointSwitch() {
		pref = sess.APIPreference(ctx)
	}
	return cfg.BaseURL(pref)
}

// LoginMessage extracts the banner text from a Login error.
func LoginMessage(err error) string {
	var le *LoginError
	if errors.As(err, &le) {
		return le.Message
	}
	return "Error during login. Please try again later."
}
