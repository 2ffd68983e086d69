package api

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/users"
)

func (c *Client) GetUser(ctx context.Context, userID string) (*users.User, error) {
	var u users.User
	if err := c.do(ctx, http.MethodGet, userPath(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUser(ctx context.Context, userID string, req apimodel.UpdateUserRequest) (*users.User, error) {
	var u users.User
	if err := c.do(ctx, http.MethodPut, userPath(userID), req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateTimeZone(ctx context.Context, userID, timeZoneID string) (*users.User, error) {
	var u users.User
	if err := c.do(ctx, http.MethodPut, userPath(userID, "timezone"), apimodel.UpdateTimeZoneRequest{TimeZoneID: timeZoneID}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GenerateTelegramLinkToken returns a deep link that binds the bot account to userID.
func (c *Client) GenerateTelegramLinkToken(ctx context.Context, userID string) (*apimodel.TelegramLinkTokenResponse, error) {
	var resp apimodel.TelegramLinkTokenResponse
	if err := c.do(ctx, http.MethodPost, userPath(userID, "telegram-link-token"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UnlinkTelegram(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, userPath(userID, "telegram-link"), nil, nil)
}
