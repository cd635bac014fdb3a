package models

// GenerationDetail records which branch one definition took during a
// generation pass.
type GenerationDetail struct {
	Task    string `json:"task"`
	Reason  string `json:"reason"`
	DueDate string `json:"dueDate,omitempty"`
}

// GenerationSummary is the result of a single generation pass over all
// candidate recurring definitions.
type GenerationSummary struct {
	Created int                `json:"created"`
	Skipped int                `json:"skipped"`
	Errors  int                `json:"errors"`
	Details []GenerationDetail `json:"details"`
}
