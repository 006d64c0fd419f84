package harness

// StepResult is the observable outcome of one step.
type StepResult struct {
	Op        string   `json:"op"`
	Entity    string   `json:"entity"`
	Aggregate string   `json:"aggregate,omitempty"`
	IDs       []int64  `json:"ids,omitempty"`
	Count     *int64   `json:"count,omitempty"`
	Groups    []string `json:"groups,omitempty"`
	Strategy  string   `json:"strategy,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and check held.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Steps: []StepResult{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
