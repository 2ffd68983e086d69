package api

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-medassist-client/apimodel"
)

func (c *Client) ListMedications(ctx context.Context, userID string) ([]apimodel.Medication, error) {
	var list []apimodel.Medication
	if err := c.do(ctx, http.MethodGet, userPath(userID, "medications"), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetMedication(ctx context.Context, userID, id string) (*apimodel.Medication, error) {
	var m apimodel.Medication
	if err := c.do(ctx, http.MethodGet, userPath(userID, "medications", id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) CreateMedication(ctx context.Context, userID string, req apimodel.CreateMedicationRequest) (*apimodel.Medication, error) {
	var m apimodel.Medication
	if err := c.do(ctx, http.MethodPost, userPath(userID, "medications"), req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) UpdateMedication(ctx context.Context, userID, id string, req apimodel.UpdateMedicationRequest) (*apimodel.Medication, error) {
	var m apimodel.Medication
	if err := c.do(ctx, http.MethodPut, userPath(userID, "medications", id), req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) DeleteMedication(ctx context.Context, userID, id string) error {
	return c.do(ctx, http.MethodDelete, userPath(userID, "medications", id), nil, nil)
}
