package gameapi

import (
	"context"
	"net/http"

	"github.com/yndnr/moonlink/internal/core/domain"
)

// API paths, relative to the base URL.
const (
	PathSignUp      = "/auth/signup"
	PathSignIn      = "/auth/signin"
	PathCurrentUser = "/user/me"
)

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by sign-in and sign-up.
type AuthResponse struct {
	Token string               `json:"token"`
	User  *domain.UserSnapshot `json:"user"`
}

// SignIn exchanges credentials for a token and the inline user.
func (c *Client) SignIn(ctx context.Context, username, password string) (*AuthResponse, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("username and password are required")
	}

	resp, err := c.post(ctx, PathSignIn, SignInRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return decodeAuth(resp)
}

// SignUp creates an account and returns its token and user.
func (c *Client) SignUp(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	if username == "" || email == "" || password == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("username, email and password are required")
	}

	resp, err := c.post(ctx, PathSignUp, SignUpRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return decodeAuth(resp)
}

// CurrentUser fetches the user the token belongs to.
func (c *Client) CurrentUser(ctx context.Context, token string) (*domain.UserSnapshot, error) {
	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}

	resp, err := c.get(ctx, PathCurrentUser, token)
	if err != nil {
		return nil, err
	}

	var user domain.UserSnapshot
	if err := parseResponse(resp, &user, authenticatedStatus); err != nil {
		return nil, err
	}
	return &user, nil
}

func decodeAuth(resp *http.Response) (*AuthResponse, error) {
	var out AuthResponse
	if err := parseResponse(resp, &out, credentialStatus); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, domain.ErrTransient.WithDetails("auth response carried no token")
	}
	return &out, nil
}
