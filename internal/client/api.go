// internal/client/api.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"medboard-service/internal/domain/auth"
	xerrors "medboard-service/internal/pkg/errors"
)

// checkAuthTimeout bounds every session-check round trip so a dead backend
// cannot leave the console stuck on its loading screen.
const checkAuthTimeout = 8 * time.Second

// API is the server surface the session store talks to. APIClient implements
// it over HTTP; tests substitute a counting fake.
type API interface {
	Login(ctx context.Context, username, password string) (*auth.LoginResponse, error)
	Whoami(ctx context.Context, token string) (*auth.WhoamiResponse, error)
	Logout(ctx context.Context, token string) error
}

// envelope mirrors the server's response format.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: checkAuthTimeout},
	}
}

func (c *APIClient) Login(ctx context.Context, username, password string) (*auth.LoginResponse, error) {
	body, err := json.Marshal(auth.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp auth.LoginResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Whoami(ctx context.Context, token string) (*auth.WhoamiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var resp auth.WhoamiResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, nil)
}

// do executes the request and decodes the envelope. HTTP auth statuses map
// back onto the shared sentinel errors so callers can branch on them.
func (c *APIClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", xerrors.ErrUnauthorized, env.Error)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", xerrors.ErrForbidden, env.Error)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", xerrors.ErrRateLimited, env.Error)
		default:
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, env.Error)
		}
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
