package report

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/dealdesk/crm-report-cli/pkg/hubspot"
)

// ProductColumns lists the product sheet columns in write order.
var ProductColumns = []string{
	"snapshot_week_start",
	"deal_id",
	"deal_name",
	"company_id",
	"company_name",
	"product_option",
	"product_raw",
	"pipeline_id",
	"pipeline_label",
	"dealstage_id",
	"dealstage_label",
	"amount",
	"closedate",
	"createdate",
	"hs_lastmodifieddate",
	"owner_id",
	"owner_name",
	"owner_email",
	"deal_url",
}

// ProductRow is one (product, deal) assignment captured by a weekly
// snapshot.
type ProductRow struct {
	SnapshotWeek string
	DealID       string
	DealName     string
	CompanyID    string
	CompanyName  string
	// Product is the configured spelling, which also names the sheet the
	// row lands on. ProductRaw keeps the property value before splitting.
	Product       string
	ProductRaw    string
	PipelineID    string
	PipelineLabel string
	StageID       string
	StageLabel    string
	// Amount stays the raw property string; it is parsed only when the
	// summary aggregates.
	Amount       string
	CloseDate    string
	CreateDate   string
	LastModified string
	OwnerID      string
	OwnerName    string
	OwnerEmail   string
	DealURL      string
}

// Cells returns the row's values in ProductColumns order.
func (r ProductRow) Cells() []string {
	return []string{
		r.SnapshotWeek, r.DealID, r.DealName, r.CompanyID, r.CompanyName,
		r.Product, r.ProductRaw, r.PipelineID, r.PipelineLabel,
		r.StageID, r.StageLabel, r.Amount, r.CloseDate, r.CreateDate,
		r.LastModified, r.OwnerID, r.OwnerName, r.OwnerEmail, r.DealURL,
	}
}

// ProductFilter matches option labels against the configured product list
// using Unicode case folding, yielding the configured spelling.
type ProductFilter struct {
	fold     cases.Caser
	byFolded map[string]string
	order    []string
}

func NewProductFilter(products []string) *ProductFilter {
	f := &ProductFilter{
		fold:     cases.Fold(),
		byFolded: make(map[string]string, len(products)),
		order:    products,
	}
	for _, p := range products {
		f.byFolded[f.fold.String(p)] = p
	}
	return f
}

// Canonical maps a product label to its configured spelling.
func (f *ProductFilter) Canonical(label string) (string, bool) {
	p, ok := f.byFolded[f.fold.String(strings.TrimSpace(label))]
	return p, ok
}

// Products returns the configured product names in order.
func (f *ProductFilter) Products() []string {
	return f.order
}

// ProductRowInput carries the lookups the row builder joins deals against.
type ProductRowInput struct {
	SnapshotWeek string
	// PropertyName is the internal name of the multi-checkbox deal
	// property holding product assignments.
	PropertyName string
	// Options maps the property's internal option values to labels.
	Options      map[string]string
	Filter       *ProductFilter
	Companies    map[string]string // deal id to company id
	CompanyNames map[string]string // company id to company name
	Owners       *OwnerDirectory
	Catalog      *StageCatalog
}

// BuildProductRows explodes each deal's product value into per-product
// rows, keeping only configured products and deduplicating on
// (product, deal id) within the run. The result holds an entry for every
// configured product, empty ones included, so a rerun also replaces weeks
// where a product lost all its deals.
func BuildProductRows(deals []hubspot.Deal, in ProductRowInput) map[string][]ProductRow {
	rows := make(map[string][]ProductRow, len(in.Filter.order))
	for _, p := range in.Filter.order {
		rows[p] = nil
	}

	type pairKey struct{ product, dealID string }
	seen := make(map[pairKey]struct{})

	for _, d := range deals {
		props := d.Properties
		raw := props[in.PropertyName]
		ownerID := props["hubspot_owner_id"]
		companyID := in.Companies[d.ID]
		var companyName string
		if companyID != "" {
			companyName = in.CompanyNames[companyID]
		}

		for _, value := range SplitMultiCheckbox(raw) {
			label, ok := in.Options[value]
			if !ok {
				label = value
			}
			product, ok := in.Filter.Canonical(label)
			if !ok {
				continue
			}
			key := pairKey{product, d.ID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			rows[product] = append(rows[product], ProductRow{
				SnapshotWeek:  in.SnapshotWeek,
				DealID:        d.ID,
				DealName:      props["dealname"],
				CompanyID:     companyID,
				CompanyName:   companyName,
				Product:       product,
				ProductRaw:    raw,
				PipelineID:    props["pipeline"],
				PipelineLabel: in.Catalog.PipelineLabel(props["pipeline"]),
				StageID:       props["dealstage"],
				StageLabel:    in.Catalog.StageLabel(props["dealstage"]),
				Amount:        props["amount"],
				CloseDate:     props["closedate"],
				CreateDate:    props["createdate"],
				LastModified:  props["hs_lastmodifieddate"],
				OwnerID:       ownerID,
				OwnerName:     in.Owners.Name(ownerID),
				OwnerEmail:    in.Owners.Email(ownerID),
				DealURL:       "https://app.hubspot.com/contacts/deal/" + d.ID,
			})
		}
	}
	return rows
}

// SplitMultiCheckbox splits a multi-checkbox property value on semicolons,
// dropping blanks.
func SplitMultiCheckbox(value string) []string {
	if value == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(value, ";") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
