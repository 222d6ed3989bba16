package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// associationPaths are tried in order per batch; portals differ on the
// object-name form of the v4 batch association endpoint.
var associationPaths = []string{
	"/crm/v4/associations/deals/companies/batch/read",
	"/crm/v4/associations/deal/companies/batch/read",
	"/crm/v4/associations/deals/company/batch/read",
}

type batchInput struct {
	ID string `json:"id"`
}

func (c *httpClient) BatchDealCompanies(ctx context.Context, dealIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(dealIDs))
	if len(dealIDs) == 0 {
		return result, nil
	}

	for _, batch := range chunk(dealIDs, 1000) {
		inputs := make([]batchInput, len(batch))
		for i, id := range batch {
			inputs[i] = batchInput{ID: id}
		}
		payload := struct {
			Inputs []batchInput `json:"inputs"`
		}{Inputs: inputs}

		results, err := tryPaths(ctx, associationPaths, func(ctx context.Context, path string) ([]AssociationResult, error) {
			var resp struct {
				Results []AssociationResult `json:"results"`
			}
			if err := c.doJSON(ctx, http.MethodPost, path, nil, payload, &resp); err != nil {
				return nil, err
			}
			return resp.Results, nil
		})
		if err != nil {
			return nil, err
		}

		for _, rec := range results {
			result[rec.From.ID] = pickCompany(rec.To)
		}
	}
	return result, nil
}

// pickCompany prefers the target labeled "primary" (case-insensitive) and
// falls back to the first associated company.
func pickCompany(targets []AssociationTarget) string {
	first := ""
	for _, t := range targets {
		if t.ToObjectID == 0 {
			continue
		}
		id := strconv.FormatInt(t.ToObjectID, 10)
		if first == "" {
			first = id
		}
		for _, at := range t.AssociationTypes {
			if strings.EqualFold(at.Label, "primary") {
				return id
			}
		}
	}
	return first
}

func (c *httpClient) BatchCompanyNames(ctx context.Context, companyIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(companyIDs))
	if len(companyIDs) == 0 {
		return names, nil
	}

	q := url.Values{}
	q.Set("archived", "false")

	for _, batch := range chunk(companyIDs, 100) {
		inputs := make([]batchInput, len(batch))
		for i, id := range batch {
			inputs[i] = batchInput{ID: id}
		}
		payload := struct {
			Inputs     []batchInput `json:"inputs"`
			Properties []string     `json:"properties"`
		}{Inputs: inputs, Properties: []string{"name"}}

		var resp struct {
			Results []Company `json:"results"`
		}
		if err := c.doJSON(ctx, http.MethodPost, "/crm/v3/objects/companies/batch/read", q, payload, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Results {
			names[r.ID] = r.Properties["name"]
		}
	}
	return names, nil
}
