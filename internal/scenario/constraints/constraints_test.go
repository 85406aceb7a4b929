package constraints

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func base() Values {
	return Values{EstimatedCost: "2470", StandSize: "LARGE"}
}

func TestValidate_BudgetOrArea(t *testing.T) {
	tests := []struct {
		name    string
		maxCost string
		maxArea string
		valid   bool
	}{
		{"neither", "", "", false},
		{"whitespace only", "  ", "", false},
		{"budget only", "1000", "", true},
		{"area only", "", "500", true},
		{"both", "0.01", "12000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base()
			v.MaxCost = tt.maxCost
			v.MaxArea = tt.maxArea

			res := Validate(v)
			assert.Equal(t, tt.valid, res.Valid, res.Violations)
			assert.Equal(t, !tt.valid, res.Has(FieldGroup, TagBudgetOrAreaRequired))
		})
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Values)
		field string
		tag   string
	}{
		{"negative cost", func(v *Values) { v.EstimatedCost = "-1" }, FieldEstimatedCost, TagMin},
		{"budget below cent", func(v *Values) { v.MaxCost = "0" }, FieldMaxCost, TagMin},
		{"area below 500", func(v *Values) { v.MaxArea = "499.9" }, FieldMaxArea, TagMin},
		{"negative distance", func(v *Values) { v.MinDistanceFromRoad = "-0.5" }, FieldMinDistanceFromRoad, TagMin},
		{"slope above 100", func(v *Values) { v.MaxSlope = "100.1" }, FieldMaxSlope, TagMax},
		{"slope negative", func(v *Values) { v.MaxSlope = "-1" }, FieldMaxSlope, TagMin},
		{"not a number", func(v *Values) { v.MaxSlope = "steep" }, FieldMaxSlope, TagNotANumber},
		{"infinity", func(v *Values) { v.MaxCost = "Inf" }, FieldMaxCost, TagNotANumber},
		{"missing stand size", func(v *Values) { v.StandSize = "" }, FieldStandSize, TagRequired},
		{"bad stand size", func(v *Values) { v.StandSize = "HUGE" }, FieldStandSize, TagInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base()
			v.MaxCost = "1000"
			tt.edit(&v)

			res := Validate(v)
			assert.False(t, res.Valid)
			assert.True(t, res.Has(tt.field, tt.tag), res.Violations)
		})
	}
}

func TestValidate_BoundariesInclusive(t *testing.T) {
	v := Values{
		EstimatedCost:       "0",
		MaxCost:             "0.01",
		MaxArea:             "500",
		MinDistanceFromRoad: "0",
		MaxSlope:            "100",
		StandSize:           "SMALL",
	}
	res := Validate(v)
	assert.True(t, res.Valid, res.Violations)
	assert.Empty(t, res.Violations)
}

func TestValues_Clone(t *testing.T) {
	v := base()
	v.ExcludedAreas = map[string]bool{"Tribal Lands": true}
	c := v.Clone()
	c.ExcludedAreas["Tribal Lands"] = false
	assert.True(t, v.ExcludedAreas["Tribal Lands"])
}

func TestValidate_ViolationMapping(t *testing.T) {
	res := Validate(Values{
		EstimatedCost: "-5",
		MaxSlope:      "140",
		StandSize:     "HUGE",
	})
	assert.False(t, res.Valid)
	assert.ElementsMatch(t, []Violation{
		{FieldEstimatedCost, TagMin},
		{FieldMaxSlope, TagMax},
		{FieldStandSize, TagInvalidOption},
		{FieldGroup, TagBudgetOrAreaRequired},
	}, res.Violations)
}

func TestValidate_MistypedBudgetStillCountsAsEntered(t *testing.T) {
	v := base()
	v.MaxCost = "lots"

	res := Validate(v)
	assert.Equal(t, []Violation{{FieldMaxCost, TagNotANumber}}, res.Violations)
}

func TestValidate_ZeroIsCheckedNotSkipped(t *testing.T) {
	v := base()
	v.MaxArea = "0"

	res := Validate(v)
	assert.Equal(t, []Violation{{FieldMaxArea, TagMin}}, res.Violations)
}
