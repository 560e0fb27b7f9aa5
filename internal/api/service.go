package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dropzy/dropzy/internal/core/session"
)

// Service exposes the backend endpoints as typed methods. Methods return the
// raw payload unless a typed shape is needed by callers.
type Service struct {
	client *Client
}

// NewService wraps client.
func NewService(client *Client) *Service {
	return &Service{client: client}
}

// Client returns the underlying client.
func (s *Service) Client() *Client { return s.client }

// AuthResult is the data of a login or register response.
type AuthResult struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// Login authenticates and stores the session when the server returns a token.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	return s.authenticate(ctx, "/api/auth/login", map[string]any{
		"email":    email,
		"password": password,
	})
}

// Register creates an account and stores the session when the server
// returns a token. name is optional.
func (s *Service) Register(ctx context.Context, email, password, name string) (AuthResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"name":     nil,
	}
	if name != "" {
		body["name"] = name
	}
	return s.authenticate(ctx, "/api/auth/register", body)
}

func (s *Service) authenticate(ctx context.Context, endpoint string, body map[string]any) (AuthResult, error) {
	raw, err := s.client.Request(ctx, Request{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Body:     body,
		NoAuth:   true,
	})
	if err != nil {
		return AuthResult{}, err
	}

	res, err := DecodeEnvelope[AuthResult](raw)
	if err != nil {
		return AuthResult{}, err
	}

	if res.Token != "" && s.client.session != nil {
		err := s.client.session.Set(ctx, session.Session{
			Token: res.Token,
			User:  session.User{ID: res.UserID, Email: res.Email, Name: res.Name},
		})
		if err != nil {
			return res, fmt.Errorf("store session: %w", err)
		}
	}
	return res, nil
}

// Logout tells the server best effort, then clears the local session
// whatever the server said.
func (s *Service) Logout(ctx context.Context) error {
	if _, err := s.client.Post(ctx, "/api/auth/logout", nil); err != nil {
		s.client.logger.Debug().Err(err).Msg("server logout failed")
	}
	if s.client.session == nil {
		return nil
	}
	return s.client.session.Clear(ctx)
}

// Me returns the signed in user's profile.
func (s *Service) Me(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/auth/me", nil)
}

// Dashboard returns the dashboard summary.
func (s *Service) Dashboard(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/dashboard", nil)
}

// CurrencyRate returns the USD exchange rate. No token is sent.
func (s *Service) CurrencyRate(ctx context.Context) (json.RawMessage, error) {
	return s.client.Request(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: "/api/currency-rate",
		NoAuth:   true,
	})
}

// Activities returns recent activity entries.
func (s *Service) Activities(ctx context.Context, limit int) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/activities", map[string]any{"limit": orInt(limit, 50)})
}

// RemoteNotification is one notification from GET /api/notifications/new-orders.
type RemoteNotification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// NewOrders is the data of GET /api/notifications/new-orders.
type NewOrders struct {
	PendingOrders int                  `json:"pending_orders"`
	Notifications []RemoteNotification `json:"notifications"`
}

// NewOrders polls pending orders and recent activity. The response is never
// cached so that polling always reaches the server.
func (s *Service) NewOrders(ctx context.Context) (NewOrders, error) {
	raw, err := s.client.Request(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: "/api/notifications/new-orders",
		NoCache:  true,
	})
	if err != nil {
		return NewOrders{}, err
	}
	return DecodeEnvelope[NewOrders](raw)
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
