package api

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-medassist-client/apimodel"
)

func (c *Client) ListReminders(ctx context.Context, userID string) ([]apimodel.Reminder, error) {
	var list []apimodel.Reminder
	if err := c.do(ctx, http.MethodGet, userPath(userID, "reminders"), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetReminder(ctx context.Context, userID, id string) (*apimodel.Reminder, error) {
	var r apimodel.Reminder
	if err := c.do(ctx, http.MethodGet, userPath(userID, "reminders", id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) CreateReminder(ctx context.Context, userID string, req apimodel.CreateReminderRequest) (*apimodel.Reminder, error) {
	var r apimodel.Reminder
	if err := c.do(ctx, http.MethodPost, userPath(userID, "reminders"), req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DeleteReminder(ctx context.Context, userID, id string) error {
	return c.do(ctx, http.MethodDelete, userPath(userID, "reminders", id), nil, nil)
}
