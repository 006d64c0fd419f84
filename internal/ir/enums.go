package ir

import "fmt"

// Gender is the patient gender a study admits.
type Gender string

const (
	GenderAll    Gender = "all"
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// ParseGender validates a gender value.
func ParseGender(s string) (Gender, error) {
	switch Gender(s) {
	case GenderAll, GenderFemale, GenderMale:
		return Gender(s), nil
	default:
		return "", fmt.Errorf("unknown gender %q", s)
	}
}

// Controlled vocabularies of the study attributes. Values are stored and
// filtered in this snake_case form.
var (
	OverallStatuses = []string{
		"active_not_recruiting",
		"approved_for_marketing",
		"available",
		"completed",
		"enrolling_by_invitation",
		"no_longer_available",
		"not_yet_recruiting",
		"recruiting",
		"suspended",
		"temporarily_not_available",
		"terminated",
		"unknown",
		"withdrawn",
		"withheld",
	}

	Phases = []string{
		"early_phase_1",
		"phase_1",
		"phase_1_phase_2",
		"phase_2",
		"phase_2_phase_3",
		"phase_3",
		"phase_4",
		"n_a",
	}

	StudyTypes = []string{
		"expanded_access",
		"interventional",
		"observational",
		"observational_patient_registry",
	}

	InterventionTypes = []string{
		"behavioral",
		"biological",
		"combination_product",
		"device",
		"diagnostic_test",
		"dietary_supplement",
		"drug",
		"genetic",
		"other",
		"procedure",
		"radiation",
	}
)

// InVocabulary reports whether v is one of the allowed values.
func InVocabulary(vocab []string, v string) bool {
	for _, allowed := range vocab {
		if allowed == v {
			return true
		}
	}
	return false
}
