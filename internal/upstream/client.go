package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/schema"
	"github.com/KevinKickass/FleetView/internal/types"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// Client talks to the upstream authentication API. Both the proxy routes and
// the server-side login/dashboard flows go through it.
type Client struct {
	httpClient  *http.Client
	loginPath   string
	detailsPath string
	profiles    *schema.Validator
	logger      *zap.Logger
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Response is a raw upstream answer.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// LoginResult is a successful login response plus the token, when present.
type LoginResult struct {
	Response
	Token   string
	Message string
}

func NewClient(cfg config.APIConfig, logger *zap.Logger) (*Client, error) {
	profiles, err := schema.NewValidator(schema.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile validator: %w", err)
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		loginPath:   cfg.LoginPath,
		detailsPath: cfg.UserDetailsPath,
		profiles:    profiles,
		logger:      logger,
	}, nil
}

// Login posts credentials to {baseURL}{loginPath}. Non-2xx answers come back as
// *types.Error of kind UpstreamRejected carrying status and body.
func (c *Client) Login(ctx context.Context, baseURL string, creds Credentials) (*LoginResult, error) {
	const op = "upstream.login"

	payload, err := json.Marshal(creds)
	if err != nil {
		return nil, types.NewError(types.KindUnknown, op, "failed to encode credentials", err)
	}
	return c.postLogin(ctx, op, baseURL, payload, creds.Username)
}

// ForwardLogin posts body unchanged to {baseURL}{loginPath}. Validation of the
// credentials is left to the upstream.
func (c *Client) ForwardLogin(ctx context.Context, baseURL string, body []byte) (*LoginResult, error) {
	var creds Credentials
	_ = json.Unmarshal(body, &creds)
	return c.postLogin(ctx, "upstream.login", baseURL, body, creds.Username)
}

func (c *Client) postLogin(ctx context.Context, op, baseURL string, payload []byte, username string) (*LoginResult, error) {
	url := joinURL(baseURL, c.loginPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.KindUnknown, op, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Proxying login request", zap.String("url", url), zap.String("username", username))

	resp, err := c.do(req)
	if err != nil {
		return nil, types.NewError(types.KindNetworkFailure, op, "no response from authentication service", err)
	}

	c.logger.Info("Login response received", zap.Int("status", resp.Status))

	if resp.Status < 200 || resp.Status >= 300 {
		return nil, &types.Error{
			Kind:    types.KindUpstreamRejected,
			Op:      op,
			Status:  resp.Status,
			Body:    resp.Body,
			Message: messageFrom(resp.Body, ""),
		}
	}

	result := &LoginResult{Response: *resp}
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		var body struct {
			Token   string `json:"token"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(resp.Body, &body); err == nil {
			result.Token = body.Token
			result.Message = body.Message
		}
	}

	return result, nil
}

// Profile fetches {baseURL}{detailsPath}. The Authorization header is normalised
// to "Bearer <token>"; on 401/422 one retry is made with the raw token. If the
// retry fails too, the error of the first attempt is returned.
func (c *Client) Profile(ctx context.Context, baseURL, authorization string) (*Response, error) {
	const op = "upstream.profile"

	bearer, raw := NormalizeAuthorization(authorization)
	if raw == "" {
		return nil, &types.Error{Kind: types.KindAuthExpired, Op: op, Message: "no authorization token provided"}
	}

	url := joinURL(baseURL, c.detailsPath)
	c.logger.Info("Proxying user details request",
		zap.String("url", url),
		zap.String("token", tokenPreview(raw)))

	resp, firstErr := c.getProfile(ctx, op, url, bearer)
	if firstErr == nil {
		return resp, nil
	}

	e, ok := types.AsError(firstErr)
	if !ok || (e.Status != http.StatusUnauthorized && e.Status != http.StatusUnprocessableEntity) {
		return nil, firstErr
	}

	c.logger.Warn("User details rejected with Bearer prefix, retrying with raw token",
		zap.Int("status", e.Status))

	resp, retryErr := c.getProfile(ctx, op, url, raw)
	if retryErr == nil {
		return resp, nil
	}

	c.logger.Warn("Raw token retry failed", zap.Error(retryErr))
	return nil, firstErr
}

// FetchProfile is Profile plus decoding and schema validation of the body.
func (c *Client) FetchProfile(ctx context.Context, baseURL, token string) (*types.Profile, error) {
	const op = "upstream.profile"

	resp, err := c.Profile(ctx, baseURL, token)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, &types.Error{Kind: types.KindMalformedResponse, Op: op, Status: resp.Status, Message: "empty response from server"}
	}

	if err := c.profiles.Validate(resp.Body); err != nil {
		return nil, &types.Error{Kind: types.KindMalformedResponse, Op: op, Status: resp.Status, Body: resp.Body,
			Message: "invalid user data format", Err: err}
	}

	profile, err := types.ParseProfile(resp.Body)
	if err != nil {
		return nil, &types.Error{Kind: types.KindMalformedResponse, Op: op, Status: resp.Status, Message: "invalid response from server", Err: err}
	}

	return profile, nil
}

func (c *Client) getProfile(ctx context.Context, op, url, authorization string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewError(types.KindUnknown, op, "failed to create request", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, types.NewError(types.KindNetworkFailure, op, "no response from user data service", err)
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		return nil, &types.Error{Kind: types.KindAuthExpired, Op: op, Status: resp.Status, Body: resp.Body,
			Message: "session expired"}
	case resp.Status < 200 || resp.Status >= 300:
		return nil, &types.Error{Kind: types.KindNetworkFailure, Op: op, Status: resp.Status, Body: resp.Body,
			Message: fmt.Sprintf("failed to load user data (%d)", resp.Status)}
	}

	return resp, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// NormalizeAuthorization accepts "Bearer x", "bearer x", "BEARER   x" or a bare
// token and returns the canonical header value and the raw token.
func NormalizeAuthorization(header string) (bearer, raw string) {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, "bearer") {
		return "", ""
	}
	if len(header) > 6 && strings.EqualFold(header[:6], "bearer") && (header[6] == ' ' || header[6] == '\t') {
		raw = strings.TrimSpace(header[7:])
	} else {
		raw = header
	}
	if raw == "" {
		return "", ""
	}
	return "Bearer " + raw, raw
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func messageFrom(body []byte, fallback string) string {
	var m struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Detail != "" {
			return m.Detail
		}
	}
	return fallback
}

func tokenPreview(token string) string {
	if len(token) <= 10 {
		return "***"
	}
	return token[:10] + "..."
}
