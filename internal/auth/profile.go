package auth

import (
	"context"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/KevinKickass/FleetView/internal/upstream"
	"go.uber.org/zap"
)

// ProfileResult is what the dashboard shell renders.
type ProfileResult struct {
	Profile *types.Profile
	// Cached is set when the live fetch failed and the session copy was used.
	Cached  bool
	Warning string
}

// ProfileService loads the current user's profile, preferring the upstream
// and falling back to the cached user_data.
type ProfileService struct {
	client *upstream.Client
	cfg    *config.Config
	logger *zap.Logger
}

func NewProfileService(client *upstream.Client, cfg *config.Config, logger *zap.Logger) *ProfileService {
	return &ProfileService{client: client, cfg: cfg, logger: logger}
}

// Load fetches the profile. AuthExpired clears the session and is returned to
// the caller, who redirects to login. Network and parse failures fall back to
// the cached profile and only fail when there is none.
func (p *ProfileService) Load(ctx context.Context, sess *session.Session) (*ProfileResult, error) {
	const op = "auth.profile"

	token := sess.Token(ctx)
	if token == "" {
		return nil, &types.Error{Kind: types.KindAuthExpired, Op: op, Message: "no token in session"}
	}

	profile, err := p.client.FetchProfile(ctx, ResolveBaseURL(ctx, p.cfg, sess), token)
	if err == nil {
		if err := sess.SetUserData(ctx, string(profile.Raw)); err != nil {
			p.logger.Warn("Failed to cache user data", zap.Error(err))
		}
		return &ProfileResult{Profile: profile}, nil
	}

	if types.IsKind(err, types.KindAuthExpired) {
		p.logger.Info("Profile fetch unauthorized, clearing session", zap.String("session", sess.ID))
		if clearErr := sess.ClearAuth(ctx); clearErr != nil {
			p.logger.Warn("Failed to clear session", zap.Error(clearErr))
		}
		return nil, err
	}

	p.logger.Warn("Profile fetch failed, trying cached user data", zap.Error(err))

	if raw := sess.UserData(ctx); raw != "" {
		if cached, parseErr := types.ParseProfile([]byte(raw)); parseErr == nil {
			return &ProfileResult{Profile: cached, Cached: true, Warning: UserMessage(err)}, nil
		}
	}

	return nil, err
}

// UserMessage maps an error to the text shown in the dashboard error state.
func UserMessage(err error) string {
	switch types.KindOf(err) {
	case types.KindAuthExpired:
		return "Session expired. Please log in again."
	case types.KindMalformedResponse:
		return "Invalid response from server. Please try again."
	case types.KindNetworkFailure:
		return "Failed to load user data. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
