package hubspot

import (
	"context"
	"net/http"
)

func (c *httpClient) ListDealProperties(ctx context.Context) ([]Property, error) {
	var resp struct {
		Results []Property `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/properties/deals", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *httpClient) GetDealProperty(ctx context.Context, name string) (*Property, error) {
	var prop Property
	if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/properties/deals/"+name, nil, nil, &prop); err != nil {
		return nil, err
	}
	return &prop, nil
}
