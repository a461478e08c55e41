package client

import (
	"context"

	"github.com/admaesmo/AidDiag/internal/api"
	"github.com/admaesmo/AidDiag/internal/buildinfo"
	"github.com/admaesmo/AidDiag/internal/core"
)

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, email, password, role string) (*core.Principal, string, error) {
	var principal core.Principal
	correlation, err := c.post(ctx, c.url().
		setPath(api.SignUpRoute).
		build(), api.SignUpPayload{
		Email:    email,
		Password: password,
		Role:     role,
	}, &principal)
	if err != nil {
		return nil, correlation, err
	}
	return &principal, correlation, nil
}

// SignIn exchanges email and password for an access and refresh token pair.
func (c *Client) SignIn(ctx context.Context, email, password string) (*api.AuthTokenResponse, string, error) {
	var resp api.AuthTokenResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.SignInRoute).
		build(), api.SignInPayload{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Refresh exchanges a refresh token for a fresh access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.AuthTokenResponse, string, error) {
	var resp api.AuthTokenResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.RefreshRoute).
		build(), api.RefreshPayload{
		RefreshToken: refreshToken,
	}, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Me retrieves the authenticated profile and token scopes.
func (c *Client) Me(ctx context.Context) (*api.MeResponse, string, error) {
	var resp api.MeResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.MeRoute).
		build(), &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Info retrieves service build information.
func (c *Client) Info(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	if err != nil {
		return nil, correlation, err
	}
	return &info, correlation, nil
}
