// Package admin is a client for the store administration backend. Request
// parameters and response payloads travel as envelopes encrypted with the
// shared key; see package crypto/envelope.
package admin

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/remind101/hexenvelope/client"
	"github.com/remind101/hexenvelope/client/request"
	"github.com/remind101/hexenvelope/crypto/envelope"
	"github.com/remind101/hexenvelope/logger"
)

// DefaultActivityLimit is used by RecentActivities when limit is not positive.
const DefaultActivityLimit = 20

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "X-Custom-Token"

var (
	ErrNotLoggedIn   = errors.New("admin: login required")
	ErrNotSuperAdmin = errors.New("admin: super admin access required")
)

// APIError is returned when the backend answers 2xx but reports
// success=false, or leaves out the data the operation needs.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// LoginResult is the data returned by a successful Login.
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// response is the body of every backend response. Data is either plain JSON
// or a JSON string holding an envelope.
type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (r *response) hasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null" && string(r.Data) != `""`
}

func (r *response) fail(fallback string) error {
	if r.Message != "" {
		return &APIError{Message: r.Message}
	}
	return &APIError{Message: fallback}
}

// Client calls the backend on behalf of a Session.
type Client struct {
	*client.Client

	// Session holds the login state. Login fills it and Logout clears it.
	Session Session

	key string
}

// New returns a Client for the backend at endpoint. anonKey is the public
// API key; keyHex is the 64 character hex envelope key.
func New(endpoint, anonKey, keyHex string, options ...func(*client.Client)) *Client {
	c := &Client{
		Client:  client.New(endpoint, options...),
		Session: &MemorySession{},
		key:     keyHex,
	}
	c.Handlers.Sign.Append(request.APIKeyAuther(anonKey))
	c.Handlers.Sign.Append(request.TokenHeader(TokenHeader, func() string {
		return c.Session.Token()
	}))
	return c
}

// Login authenticates with email and password and stores the token and
// user in the Session.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	params := map[string]string{"email": email, "password": password}

	var resp response
	if err := c.sealedBody(ctx, "POST", "/auth/login", params, &resp).Send(); err != nil {
		return nil, err
	}

	var res LoginResult
	if resp.Success && resp.hasData() {
		if err := json.Unmarshal(resp.Data, &res); err != nil {
			return nil, errors.Wrap(err, "admin: decoding login response")
		}
	}
	if !resp.Success || res.Token == "" || res.User == nil {
		return nil, resp.fail("login failed")
	}

	c.Session.Set(res.Token, res.User)
	logger.Info(ctx, "logged in", "role", res.User.Role)
	return &res, nil
}

// Logout ends the backend session. The local Session is cleared even if the
// request fails.
func (c *Client) Logout(ctx context.Context) {
	defer c.Session.Clear()

	if err := c.NewRequest(ctx, "POST", "/auth/logout", nil, nil).Send(); err != nil {
		logger.Warn(ctx, "logout request failed", "error", err)
	}
}

// Users lists users matching filters. It requires a super admin session.
func (c *Client) Users(ctx context.Context, filters UserFilters) ([]User, error) {
	if !IsSuperAdmin(c.Session) {
		return nil, ErrNotSuperAdmin
	}

	var resp response
	if err := c.sealedQuery(ctx, "/users", "filters", filters, &resp).Send(); err != nil {
		return nil, err
	}

	var users []User
	if err := c.open(ctx, &resp, &users, "could not load users"); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser validates u and creates it. It requires a super admin session.
func (c *Client) CreateUser(ctx context.Context, u *NewUser) error {
	if !IsSuperAdmin(c.Session) {
		return ErrNotSuperAdmin
	}
	if err := u.Validate(); err != nil {
		return err
	}

	var resp response
	if err := c.sealedBody(ctx, "POST", "/users", u, &resp).Send(); err != nil {
		return err
	}
	if !resp.Success {
		return resp.fail("could not create user")
	}
	return nil
}

// UsageStats returns the usage statistics of the application. The shape of
// the object is defined by the backend.
func (c *Client) UsageStats(ctx context.Context) (map[string]interface{}, error) {
	if !IsLoggedIn(c.Session) {
		return nil, ErrNotLoggedIn
	}

	var resp response
	if err := c.NewRequest(ctx, "GET", "/usage/stats", nil, &resp).Send(); err != nil {
		return nil, err
	}

	var stats map[string]interface{}
	if err := c.open(ctx, &resp, &stats, "could not load usage stats"); err != nil {
		return nil, err
	}
	return stats, nil
}

// RecentActivities returns at most limit recent activities, newest first.
func (c *Client) RecentActivities(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	if !IsLoggedIn(c.Session) {
		return nil, ErrNotLoggedIn
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	var resp response
	params := map[string]int{"limit": limit}
	if err := c.sealedQuery(ctx, "/activities", "params", params, &resp).Send(); err != nil {
		return nil, err
	}

	var activities []map[string]interface{}
	if err := c.open(ctx, &resp, &activities, "could not load recent activities"); err != nil {
		return nil, err
	}
	return activities, nil
}

// sealedBody returns a request that sends params as {"encrypted_data": env}.
func (c *Client) sealedBody(ctx context.Context, method, path string, params, data interface{}) *request.Request {
	r := c.NewRequest(ctx, method, path, params, data)
	r.Handlers.Build.Swap(request.JSONBuilder.Name, request.EncryptedBodyBuilder("encrypted_data", c.key))
	return r
}

// sealedQuery returns a GET request that sends params as an envelope in the
// query parameter param.
func (c *Client) sealedQuery(ctx context.Context, path, param string, params, data interface{}) *request.Request {
	r := c.NewRequest(ctx, "GET", path, params, data)
	r.Handlers.Build.Append(request.EncryptedQuery(param, c.key))
	return r
}

// open decrypts the envelope in resp.Data into dst.
func (c *Client) open(ctx context.Context, resp *response, dst interface{}, fallback string) error {
	if !resp.Success || !resp.hasData() {
		return resp.fail(fallback)
	}

	var sealed string
	if err := json.Unmarshal(resp.Data, &sealed); err != nil {
		logger.Error(ctx, "response data is not an envelope")
		return request.ErrOpenFailed
	}
	if !envelope.DecryptDataInto(ctx, sealed, c.key, dst) {
		return request.ErrOpenFailed
	}
	return nil
}
