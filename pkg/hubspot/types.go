package hubspot

import (
	"bytes"
	"encoding/json"
)

// Paging carries the cursor for the next page of a paginated response.
type Paging struct {
	Next *PagingNext `json:"next"`
}

// PagingNext holds the after cursor.
type PagingNext struct {
	After string `json:"after"`
}

// Owner is a CRM user who can own deals.
type Owner struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Archived  bool   `json:"archived"`
}

// ownersPage tolerates both the v3 results envelope and the legacy v2
// bare-array response shape.
type ownersPage struct {
	Results []Owner
	Paging  *Paging
}

func (p *ownersPage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &p.Results)
	}
	var env struct {
		Results []Owner `json:"results"`
		Paging  *Paging `json:"paging"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p.Results = env.Results
	p.Paging = env.Paging
	return nil
}

// Pipeline is a deal pipeline with its ordered stages.
type Pipeline struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	DisplayOrder int             `json:"displayOrder"`
	Stages       []PipelineStage `json:"stages"`
}

// PipelineStage is a single stage within a pipeline.
type PipelineStage struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	DisplayOrder int    `json:"displayOrder"`
	Archived     bool   `json:"archived"`
}

// Property describes a deal property definition.
type Property struct {
	Name      string           `json:"name"`
	Label     string           `json:"label"`
	Type      string           `json:"type"`
	FieldType string           `json:"fieldType"`
	Options   []PropertyOption `json:"options"`
}

// PropertyOption is one choice of an enumeration property.
type PropertyOption struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Hidden bool   `json:"hidden"`
}

// Deal is a CRM deal with its requested properties. Properties the portal
// has no value for decode as empty strings.
type Deal struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	Archived   bool              `json:"archived"`
}

// Company is a CRM company with its requested properties.
type Company struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// SearchRequest is the body of a CRM search call.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups,omitempty"`
	Properties   []string      `json:"properties,omitempty"`
	Sorts        []SearchSort  `json:"sorts,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	After        string        `json:"after,omitempty"`
}

// FilterGroup combines filters with AND semantics.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// Filter is a single property condition. Value may be a string or a number
// depending on the property type.
type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        any    `json:"value,omitempty"`
}

// SearchSort orders search results by a property.
type SearchSort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

// AssociationResult links one source object to its associated targets.
type AssociationResult struct {
	From AssociationEndpoint `json:"from"`
	To   []AssociationTarget `json:"to"`
}

// AssociationEndpoint identifies the source object of an association.
type AssociationEndpoint struct {
	ID string `json:"id"`
}

// AssociationTarget is one associated object with its association types.
type AssociationTarget struct {
	ToObjectID       int64             `json:"toObjectId"`
	AssociationTypes []AssociationType `json:"associationTypes"`
}

// AssociationType labels an association (e.g. the primary company).
type AssociationType struct {
	Category string `json:"category"`
	TypeID   int    `json:"typeId"`
	Label    string `json:"label"`
}
