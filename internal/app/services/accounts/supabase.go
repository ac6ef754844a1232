package accounts

import (
	"context"
	"errors"
	"net/http"

	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/supabase/client"
)

// SupabaseIdentity keeps credentials in Supabase Auth.
type SupabaseIdentity struct {
	auth *client.AuthClient
}

// NewSupabaseIdentity wraps the project's auth endpoints. The client should
// use the service role key so removals are allowed.
func NewSupabaseIdentity(c *client.Client) *SupabaseIdentity {
	return &SupabaseIdentity{auth: c.Auth()}
}

func (s *SupabaseIdentity) Register(ctx context.Context, email, password, displayName string) (string, error) {
	user, err := s.auth.SignUp(ctx, email, password, map[string]any{"display_name": displayName})
	if err != nil {
		return "", authError(err)
	}
	return user.ID, nil
}

func (s *SupabaseIdentity) Authenticate(ctx context.Context, email, password string) (string, error) {
	session, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return "", authError(err)
	}
	if session.User == nil {
		return "", errBadCredentials
	}
	return session.User.ID, nil
}

func (s *SupabaseIdentity) Remove(ctx context.Context, id string) error {
	err := s.auth.DeleteUser(ctx, id)
	if client.IsNotFound(err) {
		return nil
	}
	return err
}

func authError(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if client.IsConflict(err) || apiErr.Code == "user_already_exists" || apiErr.Code == "email_exists" {
		return svcerrors.Conflict("email already registered").WithDetails("field", "email")
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return errBadCredentials
	case http.StatusUnprocessableEntity:
		return svcerrors.InvalidInput(apiErr.Message)
	}
	return err
}
