package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-medassist-client/apimodel"
)

func (c *Client) ListIntakes(ctx context.Context, userID string, filter apimodel.IntakeFilter) ([]apimodel.Intake, error) {
	q := url.Values{}
	if filter.FromDate != nil {
		q.Set("fromDate", apimodel.FormatTimestamp(*filter.FromDate))
	}
	if filter.ToDate != nil {
		q.Set("toDate", apimodel.FormatTimestamp(*filter.ToDate))
	}
	if filter.MedicationID != "" {
		q.Set("medicationId", filter.MedicationID)
	}
	path := userPath(userID, "intakes")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list []apimodel.Intake
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetIntake(ctx context.Context, userID, id string) (*apimodel.Intake, error) {
	var in apimodel.Intake
	if err := c.do(ctx, http.MethodGet, userPath(userID, "intakes", id), nil, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (c *Client) CreateIntake(ctx context.Context, userID string, req apimodel.CreateIntakeRequest) (*apimodel.Intake, error) {
	var in apimodel.Intake
	if err := c.do(ctx, http.MethodPost, userPath(userID, "intakes"), req, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (c *Client) UpdateIntake(ctx context.Context, userID, id string, req apimodel.UpdateIntakeRequest) (*apimodel.Intake, error) {
	var in apimodel.Intake
	if err := c.do(ctx, http.MethodPut, userPath(userID, "intakes", id), req, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (c *Client) DeleteIntake(ctx context.Context, userID, id string) error {
	return c.do(ctx, http.MethodDelete, userPath(userID, "intakes", id), nil, nil)
}
