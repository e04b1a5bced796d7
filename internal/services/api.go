package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/shared"
	"golang.org/x/time/rate"
)

const (
	codeSuccess = 200
	codeLogout  = 401
)

// APIOpts configures an [APIService].
type APIOpts struct {
	BaseURL    string
	Signer     Signer
	Channel    string
	Platform   string
	RateLimit  float64 // RateLimit is requests per second; zero or less disables pacing
	Timeout    time.Duration
	HTTPClient *http.Client
	Session    SessionFunc
	Logger     *log.Logger
}

// APIService is the HTTP [Client] for the comic API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	signer     Signer
	channel    string
	platform   string
	session    SessionFunc
	logger     *log.Logger
	now        func() time.Time
}

var _ Client = (*APIService)(nil)

// NewAPIService creates a new API service instance.
func NewAPIService(opts APIOpts) *APIService {
	if opts.BaseURL == "" {
		opts.BaseURL = models.Proxies[0].Value.API
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Channel == "" {
		opts.Channel = "1"
	}
	if opts.Platform == "" {
		opts.Platform = "android"
	}
	if opts.Session == nil {
		opts.Session = func() (string, models.ImageQuality) { return "", "" }
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &APIService{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		limiter:    limiter,
		signer:     opts.Signer,
		channel:    opts.Channel,
		platform:   opts.Platform,
		session:    opts.Session,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// NewAPIServiceFromConfig creates an [APIService] from the [api] config section.
// baseURL overrides cfg.BaseURL when set, so the selected proxy line wins.
func NewAPIServiceFromConfig(cfg shared.APIConfig, baseURL string, session SessionFunc, logger *log.Logger) *APIService {
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	return NewAPIService(APIOpts{
		BaseURL:   baseURL,
		Signer:    NewSigner(cfg.APIKey, cfg.Secret, cfg.Nonce),
		Channel:   cfg.Channel,
		Platform:  cfg.Platform,
		RateLimit: cfg.RateLimit,
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		Session:   session,
		Logger:    logger,
	})
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Envelope is the body shape shared by every endpoint.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Get performs a signed GET request to path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.send(ctx, http.MethodGet, path, nil)
}

// Post performs a signed POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.send(ctx, http.MethodPost, path, data)
}

func (a *APIService) send(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	path = strings.TrimPrefix(path, "/")

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, quality := a.session()
	a.signer.Apply(req.Header, path, method, HeaderOpts{
		Channel:  a.channel,
		Platform: a.platform,
		Token:    token,
		Quality:  quality,
		Now:      a.now(),
	})

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	a.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)
	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: respBody}, nil
}

// call sends a request and decodes the envelope's data into out.
func (a *APIService) call(ctx context.Context, method, path string, in, out any) error {
	var data []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		data = encoded
	}

	resp, err := a.send(ctx, method, path, data)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	var env Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, path)
		}
		return fmt.Errorf("%w: %s returned status %d with an unreadable body", shared.ErrAPIRequest, path, resp.StatusCode)
	}

	switch {
	case env.Code == codeLogout || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, env.Message)
	case env.Code != codeSuccess || resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s: code %d: %s", shared.ErrAPIRequest, path, env.Code, env.Message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s data: %v", shared.ErrAPIRequest, path, err)
	}
	return nil
}

// SignIn exchanges credentials for a session token.
func (a *APIService) SignIn(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", shared.ErrMissingCredentials)
	}

	var out struct {
		Token string `json:"token"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := a.call(ctx, http.MethodPost, "auth/sign-in", in, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: no token in response", shared.ErrAuthFailed)
	}
	return out.Token, nil
}

// Profile fetches the signed-in user's profile.
func (a *APIService) Profile(ctx context.Context) (*models.UserProfile, error) {
	var out struct {
		User *models.UserProfile `json:"user"`
	}
	if err := a.call(ctx, http.MethodGet, "users/profile", nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("%w: profile missing from response", shared.ErrAPIRequest)
	}
	return out.User, nil
}

// Categories fetches the category catalog.
func (a *APIService) Categories(ctx context.Context) ([]models.Category, error) {
	var out struct {
		Categories []models.Category `json:"categories"`
	}
	if err := a.call(ctx, http.MethodGet, "categories", nil, &out); err != nil {
		return nil, err
	}
	if out.Categories == nil {
		out.Categories = []models.Category{}
	}
	return out.Categories, nil
}
