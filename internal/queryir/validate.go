package queryir

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/ffquery/internal/ir"
)

// predicateValidate checks clause domains declared in struct tags.
// Custom tags map to the controlled vocabularies in package ir.
var predicateValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json clause names ("age_min"), not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	vocab := map[string][]string{
		"overall_status":    ir.OverallStatuses,
		"phase":             ir.Phases,
		"study_type":        ir.StudyTypes,
		"intervention_type": ir.InterventionTypes,
	}
	for tag, values := range vocab {
		values := values
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return ir.InVocabulary(values, fl.Field().String())
		})
	}
	// Values the planner folds to "" would silently drop their clause.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return ir.Fold(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		_, err := ir.ParseGender(fl.Field().String())
		return err == nil
	})

	return v
}

// Validate checks that every clause of p is in domain for the entity kind.
//
// It returns a *PredicateError naming the first offending clause, or nil.
// Validate is a pure function; it never touches the store.
func Validate(kind ir.EntityKind, p Predicate) error {
	switch kind {
	case ir.EntityStudy, ir.EntityCitation:
	default:
		return &PredicateError{Clause: "entity", Value: string(kind), Message: "unknown entity kind"}
	}

	if err := predicateValidate.Struct(p); err != nil {
		return translateValidationError(err)
	}

	if kind == ir.EntityCitation {
		if names := p.studyOnlyClauses(); len(names) > 0 {
			return &PredicateError{Clause: names[0], Message: "clause applies to studies only"}
		}
	}

	if p.AgeMin != nil && p.AgeMax != nil && *p.AgeMin > *p.AgeMax {
		return &PredicateError{
			Clause:  "age_min",
			Value:   fmt.Sprintf("%d > %d", *p.AgeMin, *p.AgeMax),
			Message: "age_min must not exceed age_max",
		}
	}
	if p.YearMin != nil && p.YearMax != nil && *p.YearMin > *p.YearMax {
		return &PredicateError{
			Clause:  "year_min",
			Value:   fmt.Sprintf("%d > %d", *p.YearMin, *p.YearMax),
			Message: "year_min must not exceed year_max",
		}
	}

	return nil
}

// translateValidationError converts the first validator failure into a
// PredicateError.
func translateValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &PredicateError{Clause: "predicate", Message: err.Error()}
	}

	fe := verrs[0]
	return &PredicateError{
		Clause:  clauseName(fe.Namespace()),
		Value:   formatValue(fe.Value()),
		Message: tagMessage(fe),
	}
}

// clauseName turns "Predicate.countries[0]" into "countries" and
// "Predicate.near.latitude" into "near.latitude".
func clauseName(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	if i := strings.IndexByte(rest, '['); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func formatValue(v any) string {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return ""
	}
	return fmt.Sprint(rv.Interface())
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be empty"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "overall_status", "phase", "study_type", "intervention_type", "gender":
		return "unknown " + strings.ReplaceAll(fe.Tag(), "_", " ")
	default:
		return "failed " + fe.Tag() + " check"
	}
}
