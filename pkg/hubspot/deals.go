package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

func (c *httpClient) SearchDeals(ctx context.Context, req SearchRequest) ([]Deal, error) {
	if req.Limit == 0 {
		req.Limit = 100
	}

	var deals []Deal
	for page := 0; ; page++ {
		var resp struct {
			Results []Deal  `json:"results"`
			Paging  *Paging `json:"paging"`
		}
		if err := c.doJSON(ctx, http.MethodPost, "/crm/v3/objects/deals/search", nil, req, &resp); err != nil {
			return nil, err
		}
		deals = append(deals, resp.Results...)

		if c.maxPages > 0 && page+1 >= c.maxPages {
			break
		}
		if resp.Paging == nil || resp.Paging.Next == nil || resp.Paging.Next.After == "" {
			break
		}
		req.After = resp.Paging.Next.After
	}
	return deals, nil
}

func (c *httpClient) ListDeals(ctx context.Context, properties []string) ([]Deal, error) {
	var deals []Deal
	after := ""
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("limit", "100")
		q.Set("archived", "false")
		if len(properties) > 0 {
			q.Set("properties", strings.Join(properties, ","))
		}
		if after != "" {
			q.Set("after", after)
		}

		var resp struct {
			Results []Deal  `json:"results"`
			Paging  *Paging `json:"paging"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/objects/deals", q, nil, &resp); err != nil {
			return nil, err
		}
		deals = append(deals, resp.Results...)

		if c.maxPages > 0 && page+1 >= c.maxPages {
			break
		}
		if resp.Paging == nil || resp.Paging.Next == nil || resp.Paging.Next.After == "" {
			break
		}
		after = resp.Paging.Next.After
	}
	return deals, nil
}
