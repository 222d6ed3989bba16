package hubspot

import (
	"context"
	"net/http"
)

func (c *httpClient) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	var resp struct {
		Results []Pipeline `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/pipelines/deals", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}
