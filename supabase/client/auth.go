package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Auth returns the GoTrue client.
func (c *Client) Auth() *AuthClient {
	return &AuthClient{client: c}
}

// AuthClient handles authentication operations.
type AuthClient struct {
	client *Client
}

// Session is returned by sign-up (when auto-confirm is on) and sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// ExpiresAt converts ExpiresIn to an absolute time from now.
func (s *Session) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// User is a Supabase auth user.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	CreatedAt    time.Time      `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SignUp registers a user. Metadata is stored as user_metadata.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	req, err := a.client.newRequest(ctx, http.MethodPost, "/auth/v1/signup", nil, body)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}

	// With email confirmation disabled the response is a session; otherwise
	// it is the bare user.
	var session Session
	if err := resp.JSON(&session); err == nil && session.User != nil {
		return session.User, nil
	}
	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	return &user, nil
}

// SignIn exchanges a password for a session.
func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	q := url.Values{"grant_type": {"password"}}
	req, err := a.client.newRequest(ctx, http.MethodPost, "/auth/v1/token", q, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}
	var session Session
	if err := resp.JSON(&session); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &session, nil
}

// GetUser returns the user owning accessToken.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := a.client.WithToken(accessToken).newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}
	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// DeleteUser removes a user through the admin API. The client key must be
// the service role key.
func (a *AuthClient) DeleteUser(ctx context.Context, id string) error {
	req, err := a.client.newRequest(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	_, err = a.client.do(req)
	return err
}
