package report

import (
	"strconv"
	"strings"

	"github.com/dealdesk/crm-report-cli/pkg/hubspot"
)

// StageMatrix accumulates deal amount sums keyed by owner and stage,
// preserving the order both were first seen in.
type StageMatrix struct {
	owners []string
	stages map[string][]string
	sums   map[string]map[string]float64
}

func NewStageMatrix() *StageMatrix {
	return &StageMatrix{
		stages: make(map[string][]string),
		sums:   make(map[string]map[string]float64),
	}
}

// Add accumulates amount into the owner's stage bucket.
func (m *StageMatrix) Add(owner, stage string, amount float64) {
	row, ok := m.sums[owner]
	if !ok {
		row = make(map[string]float64)
		m.sums[owner] = row
		m.owners = append(m.owners, owner)
	}
	if _, ok := row[stage]; !ok {
		m.stages[owner] = append(m.stages[owner], stage)
	}
	row[stage] += amount
}

// Owners returns owner labels in first-seen order.
func (m *StageMatrix) Owners() []string {
	return m.owners
}

// Stages returns the owner's stage labels in first-seen order.
func (m *StageMatrix) Stages(owner string) []string {
	return m.stages[owner]
}

// Amount returns the accumulated sum for one owner and stage.
func (m *StageMatrix) Amount(owner, stage string) float64 {
	return m.sums[owner][stage]
}

// BuildStageMatrix aggregates deals into an owner-by-stage amount matrix.
// Stages missing from the catalog bucket under UnknownStage, deals without
// a resolvable owner under UnassignedOwner, and unparseable amounts count
// as zero.
func BuildStageMatrix(deals []hubspot.Deal, owners *OwnerDirectory, catalog *StageCatalog) *StageMatrix {
	m := NewStageMatrix()
	for _, d := range deals {
		stage, ok := catalog.stages[d.Properties["dealstage"]]
		if !ok {
			stage = UnknownStage
		}
		owner := owners.DisplayName(d.Properties["hubspot_owner_id"])
		m.Add(owner, stage, ParseAmount(d.Properties["amount"]))
	}
	return m
}

// ParseAmount converts the CRM's string amounts, treating blank and
// unparseable values as zero.
func ParseAmount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
