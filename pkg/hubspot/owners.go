package hubspot

import (
	"context"
	"net/http"
	"net/url"
)

// ownersPaths are tried in order; some portals only expose the legacy
// v2 endpoint, which returns a bare JSON array without paging.
var ownersPaths = []string{"/crm/v3/owners", "/owners/v2/owners"}

func (c *httpClient) ListOwners(ctx context.Context) ([]Owner, error) {
	return tryPaths(ctx, ownersPaths, c.listOwnersAt)
}

func (c *httpClient) listOwnersAt(ctx context.Context, path string) ([]Owner, error) {
	var owners []Owner
	after := ""
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("limit", "100")
		q.Set("archived", "false")
		if after != "" {
			q.Set("after", after)
		}

		var resp ownersPage
		if err := c.doJSON(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
			return nil, err
		}
		owners = append(owners, resp.Results...)

		if c.maxPages > 0 && page+1 >= c.maxPages {
			break
		}
		if resp.Paging == nil || resp.Paging.Next == nil || resp.Paging.Next.After == "" {
			break
		}
		after = resp.Paging.Next.After
	}
	return owners, nil
}
