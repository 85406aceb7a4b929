// Package form holds the multi-step scenario form: four ordered step groups,
// their enablement and touched flags, raw values, and aggregate validity.
//
// A Form is not safe for concurrent use; the workflow controller owns it.
package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"planscape-scenarios/internal/models"
	"planscape-scenarios/internal/scenario/constraints"
)

var (
	ErrGroupDisabled   = errors.New("GROUP_DISABLED")
	ErrFormInvalid     = errors.New("FORM_INVALID")
	ErrUnknownExcluded = errors.New("UNKNOWN_EXCLUDED_AREA")
)

// Group identifies a step group.
type Group string

const (
	GroupName         Group = "name"
	GroupPriorities   Group = "priorities"
	GroupConstraints  Group = "constraints"
	GroupProjectAreas Group = "projectAreas"
)

// Order is the step order presented to the user.
var Order = []Group{GroupName, GroupPriorities, GroupConstraints, GroupProjectAreas}

const (
	FieldScenarioName     = "scenarioName"
	FieldSelectedQuestion = "selectedQuestion"
)

// Defaults used when Options leaves a value empty.
const (
	DefaultEstimatedCost = "2470"
	DefaultStandSize     = string(models.StandSizeLarge)
)

type NameValues struct {
	ScenarioName string
}

type PriorityValues struct {
	SelectedQuestion *models.TreatmentQuestionConfig
}

type ProjectAreaValues struct {
	GenerateAreas bool
	UploadedArea  json.RawMessage
}

// StepGroup is the externally visible state of one group.
type StepGroup struct {
	Name    Group `json:"name"`
	Enabled bool  `json:"enabled"`
	Touched bool  `json:"touched"`
	Valid   bool  `json:"valid"`
}

// Violation is a failed rule within a group.
type Violation struct {
	Group Group  `json:"group"`
	Field string `json:"field"`
	Tag   string `json:"tag"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s.%s:%s", v.Group, v.Field, v.Tag)
}

// Options configures a new Form.
type Options struct {
	ExcludedAreaOptions  []string
	DefaultEstimatedCost string
	DefaultStandSize     string
}

type groupFlags struct {
	enabled bool
	touched bool
}

type Form struct {
	flags map[Group]*groupFlags

	name         NameValues
	priorities   PriorityValues
	constraints  constraints.Values
	projectAreas ProjectAreaValues

	excludedOptions []string
}

// New builds a form populated with defaults: every excluded-area option off,
// exclusion by slope and road distance on.
func New(opts Options) *Form {
	f := &Form{
		flags:           make(map[Group]*groupFlags, len(Order)),
		excludedOptions: append([]string(nil), opts.ExcludedAreaOptions...),
	}
	for _, g := range Order {
		f.flags[g] = &groupFlags{enabled: true}
	}

	estCost := opts.DefaultEstimatedCost
	if estCost == "" {
		estCost = DefaultEstimatedCost
	}
	standSize := opts.DefaultStandSize
	if standSize == "" {
		standSize = DefaultStandSize
	}

	f.constraints = constraints.Values{
		EstimatedCost:          estCost,
		StandSize:              standSize,
		ExcludedAreas:          make(map[string]bool, len(f.excludedOptions)),
		ExcludeAreasByDegrees:  true,
		ExcludeAreasByDistance: true,
	}
	for _, opt := range f.excludedOptions {
		f.constraints.ExcludedAreas[opt] = false
	}
	return f
}

// ExcludedAreaOptions returns the option catalog in display order.
func (f *Form) ExcludedAreaOptions() []string {
	return append([]string(nil), f.excludedOptions...)
}

func (f *Form) edit(g Group, fn func()) error {
	if !f.flags[g].enabled {
		return fmt.Errorf("%w: %s", ErrGroupDisabled, g)
	}
	fn()
	return nil
}

func (f *Form) SetScenarioName(name string) error {
	return f.edit(GroupName, func() { f.name.ScenarioName = name })
}

func (f *Form) SetSelectedQuestion(q *models.TreatmentQuestionConfig) error {
	return f.edit(GroupPriorities, func() { f.priorities.SelectedQuestion = q })
}

func (f *Form) SetEstimatedCost(v string) error {
	return f.edit(GroupConstraints, func() { f.constraints.EstimatedCost = v })
}

func (f *Form) SetMaxCost(v string) error {
	return f.edit(GroupConstraints, func() { f.constraints.MaxCost = v })
}

func (f *Form) SetMaxArea(v string) error {
	return f.edit(GroupConstraints, func() { f.constraints.MaxArea = v })
}

func (f *Form) SetMinDistanceFromRoad(v string) error {
	return f.edit(GroupConstraints, func() { f.constraints.MinDistanceFromRoad = v })
}

func (f *Form) SetMaxSlope(v string) error {
	return f.edit(GroupConstraints, func() { f.constraints.MaxSlope = v })
}

func (f *Form) SetStandSize(v string) error {
	return f.edit(GroupConstraints, func() { f.constraints.StandSize = v })
}

func (f *Form) SetExcludedArea(option string, selected bool) error {
	if _, ok := f.constraints.ExcludedAreas[option]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExcluded, option)
	}
	return f.edit(GroupConstraints, func() { f.constraints.ExcludedAreas[option] = selected })
}

func (f *Form) SetExcludeAreasByDegrees(on bool) error {
	return f.edit(GroupConstraints, func() { f.constraints.ExcludeAreasByDegrees = on })
}

func (f *Form) SetExcludeAreasByDistance(on bool) error {
	return f.edit(GroupConstraints, func() { f.constraints.ExcludeAreasByDistance = on })
}

func (f *Form) SetGenerateAreas(on bool) error {
	return f.edit(GroupProjectAreas, func() { f.projectAreas.GenerateAreas = on })
}

func (f *Form) SetUploadedArea(raw json.RawMessage) error {
	return f.edit(GroupProjectAreas, func() {
		if raw == nil {
			f.projectAreas.UploadedArea = nil
			return
		}
		f.projectAreas.UploadedArea = append(json.RawMessage(nil), raw...)
	})
}

// SelectedShapes is the geometry the project-area step currently previews:
// nil when areas are auto-generated, the uploaded shape otherwise.
func (f *Form) SelectedShapes() json.RawMessage {
	if f.projectAreas.GenerateAreas {
		return nil
	}
	return f.projectAreas.UploadedArea
}

// Patch overwrites only the non-nil fields. It is applied regardless of
// enablement because it mirrors server state into a read-only form.
type Patch struct {
	ScenarioName        *string
	SelectedQuestion    *models.TreatmentQuestionConfig
	EstimatedCost       *string
	MaxCost             *string
	MaxArea             *string
	MinDistanceFromRoad *string
	MaxSlope            *string
	StandSize           *string
	// ExcludedAreas, when non-nil, sets every option to whether it is listed.
	ExcludedAreas []string
}

func (f *Form) Apply(p Patch) {
	if p.ScenarioName != nil {
		f.name.ScenarioName = *p.ScenarioName
	}
	if p.SelectedQuestion != nil {
		f.priorities.SelectedQuestion = p.SelectedQuestion
	}
	setIf := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setIf(&f.constraints.EstimatedCost, p.EstimatedCost)
	setIf(&f.constraints.MaxCost, p.MaxCost)
	setIf(&f.constraints.MaxArea, p.MaxArea)
	setIf(&f.constraints.MinDistanceFromRoad, p.MinDistanceFromRoad)
	setIf(&f.constraints.MaxSlope, p.MaxSlope)
	setIf(&f.constraints.StandSize, p.StandSize)

	if p.ExcludedAreas != nil {
		listed := make(map[string]bool, len(p.ExcludedAreas))
		for _, a := range p.ExcludedAreas {
			listed[a] = true
		}
		for _, opt := range f.excludedOptions {
			f.constraints.ExcludedAreas[opt] = listed[opt]
		}
	}
}

// ValidateGroup returns the violations of one group.
func (f *Form) ValidateGroup(g Group) []Violation {
	var out []Violation
	switch g {
	case GroupName:
		if strings.TrimSpace(f.name.ScenarioName) == "" {
			out = append(out, Violation{g, FieldScenarioName, constraints.TagRequired})
		}
	case GroupPriorities:
		if f.priorities.SelectedQuestion == nil {
			out = append(out, Violation{g, FieldSelectedQuestion, constraints.TagRequired})
		}
	case GroupConstraints:
		for _, v := range constraints.Validate(f.constraints).Violations {
			out = append(out, Violation{g, v.Field, v.Tag})
		}
	case GroupProjectAreas:
	}
	return out
}

// Violations returns every violation in step order.
func (f *Form) Violations() []Violation {
	var out []Violation
	for _, g := range Order {
		out = append(out, f.ValidateGroup(g)...)
	}
	return out
}

// Valid reports aggregate validity: every group valid, enabled or not.
func (f *Form) Valid() bool {
	return len(f.Violations()) == 0
}

// Err returns ErrFormInvalid wrapped with the violations, or nil.
func (f *Form) Err() error {
	violations := f.Violations()
	if len(violations) == 0 {
		return nil
	}
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("%w: %s", ErrFormInvalid, strings.Join(parts, ", "))
}

func (f *Form) MarkAllTouched() {
	for _, fl := range f.flags {
		fl.touched = true
	}
}

func (f *Form) Disable(groups ...Group) {
	for _, g := range groups {
		if fl, ok := f.flags[g]; ok {
			fl.enabled = false
		}
	}
}

func (f *Form) EnableAll() {
	for _, fl := range f.flags {
		fl.enabled = true
	}
}

// DisableForSubmission freezes everything except project areas.
func (f *Form) DisableForSubmission() {
	f.Disable(GroupName, GroupPriorities, GroupConstraints)
}

// DisableAll makes the whole form read-only.
func (f *Form) DisableAll() {
	f.Disable(Order...)
}

func (f *Form) Enabled(g Group) bool {
	fl, ok := f.flags[g]
	return ok && fl.enabled
}

// Groups returns the step groups in order.
func (f *Form) Groups() []StepGroup {
	out := make([]StepGroup, len(Order))
	for i, g := range Order {
		out[i] = StepGroup{
			Name:    g,
			Enabled: f.flags[g].enabled,
			Touched: f.flags[g].touched,
			Valid:   len(f.ValidateGroup(g)) == 0,
		}
	}
	return out
}

// Snapshot is an immutable copy of the form.
type Snapshot struct {
	Name                NameValues
	Priorities          PriorityValues
	Constraints         constraints.Values
	ProjectAreas        ProjectAreaValues
	ExcludedAreaOptions []string
	Groups              []StepGroup
	Violations          []Violation
}

func (f *Form) Snapshot() Snapshot {
	s := Snapshot{
		Name:                f.name,
		Constraints:         f.constraints.Clone(),
		ExcludedAreaOptions: f.ExcludedAreaOptions(),
		Groups:              f.Groups(),
		Violations:          f.Violations(),
	}
	if q := f.priorities.SelectedQuestion; q != nil {
		cp := *q
		s.Priorities.SelectedQuestion = &cp
	}
	s.ProjectAreas.GenerateAreas = f.projectAreas.GenerateAreas
	if f.projectAreas.UploadedArea != nil {
		s.ProjectAreas.UploadedArea = append(json.RawMessage(nil), f.projectAreas.UploadedArea...)
	}
	return s
}
