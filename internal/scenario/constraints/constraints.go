// Package constraints validates the constraints step of the scenario form.
// Validation is a pure function of the raw field values.
package constraints

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names as reported in violations.
const (
	FieldEstimatedCost       = "estimatedCost"
	FieldMaxCost             = "maxCost"
	FieldMaxArea             = "maxArea"
	FieldMinDistanceFromRoad = "minDistanceFromRoad"
	FieldMaxSlope            = "maxSlope"
	FieldStandSize           = "standSize"

	// FieldGroup marks violations that belong to the group rather than a field.
	FieldGroup = "constraints"
)

// Violation tags.
const (
	TagRequired             = "required"
	TagMin                  = "min"
	TagMax                  = "max"
	TagNotANumber           = "notANumber"
	TagInvalidOption        = "invalidOption"
	TagBudgetOrAreaRequired = "budgetOrAreaRequired"
)

// Values are the raw, user-entered constraint fields. Numeric fields are kept
// as strings so partially typed input can be validated.
type Values struct {
	EstimatedCost       string
	MaxCost             string
	MaxArea             string
	MinDistanceFromRoad string
	MaxSlope            string
	StandSize           string

	// ExcludedAreas maps every option in the catalog to its selection.
	ExcludedAreas          map[string]bool
	ExcludeAreasByDegrees  bool
	ExcludeAreasByDistance bool
}

// Clone returns a deep copy.
func (v Values) Clone() Values {
	out := v
	if v.ExcludedAreas != nil {
		out.ExcludedAreas = make(map[string]bool, len(v.ExcludedAreas))
		for k, sel := range v.ExcludedAreas {
			out.ExcludedAreas[k] = sel
		}
	}
	return out
}

type Violation struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
}

type Result struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Has reports whether a violation with tag was recorded for field.
func (r Result) Has(field, tag string) bool {
	for _, v := range r.Violations {
		if v.Field == field && v.Tag == tag {
			return true
		}
	}
	return false
}

// checked is the typed form of Values the validator runs over. Numeric
// fields are nil when empty or not a number.
type checked struct {
	EstimatedCost       *float64 `name:"estimatedCost" validate:"omitempty,gte=0"`
	MaxCost             *float64 `name:"maxCost" validate:"omitempty,gte=0.01"`
	MaxArea             *float64 `name:"maxArea" validate:"omitempty,gte=500"`
	MinDistanceFromRoad *float64 `name:"minDistanceFromRoad" validate:"omitempty,gte=0"`
	MaxSlope            *float64 `name:"maxSlope" validate:"omitempty,gte=0,lte=100"`
	StandSize           string   `name:"standSize" validate:"required,oneof=SMALL MEDIUM LARGE"`

	// Presence of the raw inputs decides the budget-or-area rule, so a
	// mistyped budget still counts as entered.
	MaxCostRaw string `name:"constraints" validate:"required_without=MaxAreaRaw"`
	MaxAreaRaw string `name:"maxAreaRaw"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("name")
	})
	return v
}

// tagFor maps validator tags to violation tags.
var tagFor = map[string]string{
	"required":         TagRequired,
	"gte":              TagMin,
	"lte":              TagMax,
	"oneof":            TagInvalidOption,
	"required_without": TagBudgetOrAreaRequired,
}

// Validate checks every field rule and the budget-or-area rule.
func Validate(v Values) Result {
	var violations []Violation

	number := func(field, raw string) *float64 {
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil
		}
		n, ok := ParseNumber(s)
		if !ok {
			violations = append(violations, Violation{field, TagNotANumber})
			return nil
		}
		return &n
	}

	c := checked{
		EstimatedCost:       number(FieldEstimatedCost, v.EstimatedCost),
		MaxCost:             number(FieldMaxCost, v.MaxCost),
		MaxArea:             number(FieldMaxArea, v.MaxArea),
		MinDistanceFromRoad: number(FieldMinDistanceFromRoad, v.MinDistanceFromRoad),
		MaxSlope:            number(FieldMaxSlope, v.MaxSlope),
		StandSize:           strings.TrimSpace(v.StandSize),
		MaxCostRaw:          strings.TrimSpace(v.MaxCost),
		MaxAreaRaw:          strings.TrimSpace(v.MaxArea),
	}

	if err := validate.Struct(c); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			tag, ok := tagFor[fe.Tag()]
			if !ok {
				tag = fe.Tag()
			}
			violations = append(violations, Violation{Field: fe.Field(), Tag: tag})
		}
	}

	return Result{Valid: len(violations) == 0, Violations: violations}
}

// ParseNumber parses a finite decimal number.
func ParseNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
