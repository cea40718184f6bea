package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	"github.com/Tanja-4732/sfi-web/internal/models"
)

// BasePath is the fixed prefix of all authentication endpoints.
const BasePath = "/api/v1/authentication"

var (
	// ErrNoSession is returned by Status when the backend reports that no
	// valid session exists. It is an expected outcome, not a transport
	// failure.
	ErrNoSession = errors.New("no valid session")
)

// RejectedError is returned when the backend answered the request but
// refused it (e.g., wrong credentials). A RejectedError is distinct from a
// transport failure: the network call itself completed.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend rejected request (%d)", e.StatusCode)
}

// Backend is the identity backend as seen by the Session Agent.
// This abstraction allows tests to substitute a scripted backend.
type Backend interface {
	// Login exchanges credentials for the user's profile.
	Login(ctx context.Context, creds models.Credentials) (*models.UserInfo, error)

	// Signup registers a new account and returns the resulting profile.
	Signup(ctx context.Context, reg models.Registration) (*models.UserInfo, error)

	// Logout terminates the current session. It returns an error only on
	// transport failure; a rejection still ends the session client-side.
	Logout(ctx context.Context) error

	// Status probes the backend for the current session's profile.
	// Returns ErrNoSession when the backend rejects the probe.
	Status(ctx context.Context) (*models.UserInfo, error)
}

// Ensure Client implements Backend
var _ Backend = (*Client)(nil)

// Client talks to the identity backend over HTTP. Requests carry JSON bodies
// and same-origin credentials: the session cookie issued at login is kept in
// a cookie jar and attached to every subsequent call.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the backend at baseURL (scheme and host,
// without the authentication base path).
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		httpClient: &http.Client{Jar: jar},
		baseURL:    baseURL,
	}, nil
}

// Login posts the credentials to the login endpoint.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.UserInfo, error) {
	return c.postForUser(ctx, "/login", creds)
}

// Signup posts the registration to the signup endpoint.
func (c *Client) Signup(ctx context.Context, reg models.Registration) (*models.UserInfo, error) {
	return c.postForUser(ctx, "/signup", reg)
}

// Logout calls the logout endpoint. Any completed HTTP exchange counts as a
// successful logout; only transport failures are reported.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.get(ctx, "/logout")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Status probes the backend for the current session.
func (c *Client) Status(ctx context.Context) (*models.UserInfo, error) {
	resp, err := c.get(ctx, "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, ErrNoSession
	}
	return decodeUser(resp.Body)
}

func (c *Client) postForUser(ctx context.Context, path string, body any) (*models.UserInfo, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+BasePath+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejected(resp)
	}
	return decodeUser(resp.Body)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+BasePath+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.httpClient.Do(req)
}

func decodeUser(r io.Reader) (*models.UserInfo, error) {
	var user models.UserInfo
	if err := json.NewDecoder(r).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user profile: %w", err)
	}
	return &user, nil
}

func rejected(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &RejectedError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
}
