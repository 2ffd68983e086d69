package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-medassist-client/apimodel"
)

func (c *Client) Login(ctx context.Context, req apimodel.LoginRequest) (*apimodel.AuthResponse, error) {
	var resp apimodel.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, req apimodel.RegisterRequest) (*apimodel.AuthResponse, error) {
	var resp apimodel.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new record. It never passes through the credential stages.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*apimodel.AuthResponse, error) {
	var resp apimodel.AuthResponse
	req := apimodel.RefreshTokenRequest{RefreshToken: refreshToken}
	if err := c.send(ctx, c.raw, http.MethodPost, "/auth/refresh", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Revoke invalidates one refresh token (this device).
func (c *Client) Revoke(ctx context.Context, refreshToken string) (*apimodel.MessageResponse, error) {
	var resp apimodel.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/auth/revoke", apimodel.RevokeTokenRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RevokeAll invalidates every refresh token of the bearer's account.
func (c *Client) RevokeAll(ctx context.Context) (*apimodel.MessageResponse, error) {
	var resp apimodel.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/auth/revoke-all", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TelegramWebLogin(ctx context.Context, token string) (*apimodel.AuthResponse, error) {
	var resp apimodel.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/telegram-web-login", apimodel.TelegramWebLoginRequest{Token: token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TelegramWebApp(ctx context.Context, initData string) (*apimodel.AuthResponse, error) {
	var resp apimodel.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/telegram-webapp", apimodel.TelegramWebAppRequest{InitData: initData}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TelegramLoginInit(ctx context.Context) (*apimodel.TelegramLoginInitResponse, error) {
	var resp apimodel.TelegramLoginInitResponse
	if err := c.do(ctx, http.MethodPost, "/auth/telegram-login-init", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TelegramLoginPoll(ctx context.Context, token string) (*apimodel.TelegramLoginPollResponse, error) {
	var resp apimodel.TelegramLoginPollResponse
	if err := c.do(ctx, http.MethodGet, "/auth/telegram-login-poll/"+url.PathEscape(token), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
