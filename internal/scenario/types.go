package scenario

// Case is one admission assertion: an envelope described in YAML plus
// the expected outcome.
type Case struct {
	Name       string   `yaml:"name,omitempty"`
	Kind       string   `yaml:"kind"`
	Action     string   `yaml:"action,omitempty"`
	Arguments  []string `yaml:"arguments,omitempty"`
	Source     string   `yaml:"source,omitempty"`
	EventCount uint32   `yaml:"event_count,omitempty"`
	Checksum   string   `yaml:"checksum,omitempty"`
	Expect     string   `yaml:"expect"`
	Reason     string   `yaml:"reason,omitempty"`
}

// Scenario is a named collection of admission test cases.
type Scenario struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Reason   string `json:"reason"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
