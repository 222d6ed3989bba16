package report

import (
	"strings"

	"github.com/dealdesk/crm-report-cli/pkg/hubspot"
)

// Sentinel labels for deals whose dimension values cannot be resolved.
const (
	UnassignedOwner = "Unassigned"
	UnknownStage    = "Unknown stage"
)

// OwnerDirectory resolves owner ids to display names and emails.
type OwnerDirectory struct {
	byID map[string]hubspot.Owner
}

// NewOwnerDirectory indexes owners by id, skipping records without one.
func NewOwnerDirectory(owners []hubspot.Owner) *OwnerDirectory {
	d := &OwnerDirectory{byID: make(map[string]hubspot.Owner, len(owners))}
	for _, o := range owners {
		if o.ID == "" {
			continue
		}
		d.byID[o.ID] = o
	}
	return d
}

// DisplayName labels an owner for the stage report: full name, then email,
// then "Owner <id>". Ids missing from the directory label as Unassigned.
func (d *OwnerDirectory) DisplayName(id string) string {
	o, ok := d.byID[id]
	if !ok {
		return UnassignedOwner
	}
	if name := fullName(o); name != "" {
		return name
	}
	if email := strings.TrimSpace(o.Email); email != "" {
		return email
	}
	return "Owner " + o.ID
}

// Name returns the owner's full name, then email, then the raw id. Ids
// missing from the directory return "".
func (d *OwnerDirectory) Name(id string) string {
	o, ok := d.byID[id]
	if !ok {
		return ""
	}
	if name := fullName(o); name != "" {
		return name
	}
	if email := strings.TrimSpace(o.Email); email != "" {
		return email
	}
	return o.ID
}

// Email returns the owner's email, or "" for unknown ids.
func (d *OwnerDirectory) Email(id string) string {
	return strings.TrimSpace(d.byID[id].Email)
}

func fullName(o hubspot.Owner) string {
	return strings.TrimSpace(strings.TrimSpace(o.FirstName) + " " + strings.TrimSpace(o.LastName))
}

// StageCatalog resolves pipeline and stage ids to labels.
type StageCatalog struct {
	pipelines    map[string]string
	stages       map[string]string
	defaultOrder []string
}

// NewStageCatalog indexes stage and pipeline labels across every pipeline.
// The default stage order comes from the first pipeline that has stages;
// later pipelines win duplicated stage ids.
func NewStageCatalog(pipelines []hubspot.Pipeline) *StageCatalog {
	c := &StageCatalog{
		pipelines: make(map[string]string, len(pipelines)),
		stages:    make(map[string]string),
	}
	for _, p := range pipelines {
		c.pipelines[p.ID] = labelOr(p.Label, p.ID)
		if len(c.defaultOrder) == 0 {
			for _, s := range p.Stages {
				c.defaultOrder = append(c.defaultOrder, labelOr(s.Label, s.ID))
			}
		}
		for _, s := range p.Stages {
			c.stages[s.ID] = labelOr(s.Label, s.ID)
		}
	}
	return c
}

// PipelineLabel returns the pipeline's label, falling back to the id.
func (c *StageCatalog) PipelineLabel(id string) string {
	if label, ok := c.pipelines[id]; ok {
		return label
	}
	return id
}

// StageLabel returns the stage's label, falling back to the id.
func (c *StageCatalog) StageLabel(id string) string {
	if label, ok := c.stages[id]; ok {
		return label
	}
	return id
}

// DefaultStageOrder returns the funnel order new sheets are seeded with.
func (c *StageCatalog) DefaultStageOrder() []string {
	out := make([]string, len(c.defaultOrder))
	copy(out, c.defaultOrder)
	return out
}

func labelOr(label, id string) string {
	if label != "" {
		return label
	}
	return id
}

// OptionLabels maps a property's internal option values to display labels,
// skipping options without a value.
func OptionLabels(p *hubspot.Property) map[string]string {
	labels := make(map[string]string, len(p.Options))
	for _, o := range p.Options {
		if o.Value == "" {
			continue
		}
		labels[o.Value] = labelOr(o.Label, o.Value)
	}
	return labels
}

// FindPropertyByLabel returns the first property whose display label
// matches, comparing trimmed and case-insensitive.
func FindPropertyByLabel(props []hubspot.Property, label string) (hubspot.Property, bool) {
	want := strings.TrimSpace(label)
	for _, p := range props {
		if strings.EqualFold(strings.TrimSpace(p.Label), want) {
			return p, true
		}
	}
	return hubspot.Property{}, false
}
