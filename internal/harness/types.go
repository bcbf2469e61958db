package harness

// Outcome is what evaluating a scenario's entry produced.
type Outcome struct {
	// Type and Normal are printed expressions; empty on failure.
	Type   string `json:"type,omitempty"`
	Normal string `json:"normal,omitempty"`

	// Hash is the semantic hash of the normal form.
	Hash string `json:"-"`

	// JSON is the compact JSON export, when the normal form has one.
	JSON string `json:"json,omitempty"`

	// Imports are rendered as in Expect.Imports.
	Imports []string `json:"imports,omitempty"`

	// Error is the error code, and ErrorMessage the full message.
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"-"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	Outcome Outcome `json:"outcome"`

	// Errors contains expectation and principle violations.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
