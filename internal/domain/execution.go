package domain

// RunStatus classifies an execution result. Compile and runtime failures are
// normal user-visible outcomes, not system faults.
type RunStatus string

const (
	RunSuccess      RunStatus = "success"
	RunCompileError RunStatus = "compile_error"
	RunRuntimeError RunStatus = "runtime_error"
)

// RunResult is the outcome of one execution gateway call.
type RunResult struct {
	Status RunStatus `json:"status"`
	Stdout string    `json:"stdout"`
	Stderr string    `json:"stderr"`
}

// RenderOutput is the text shown in the shared output panel: stdout on
// success, stderr otherwise.
func (r *RunResult) RenderOutput() string {
	if r.Status == RunSuccess {
		return r.Stdout
	}
	return r.Stderr
}

// ProblemCase is one expected-input/expected-output pair of a problem
// submission.
type ProblemCase struct {
	Params   string `json:"params"`
	Expected string `json:"expected"`
}

// CaseResult is the outcome of running the harnessed code for one case.
type CaseResult struct {
	Params           string `json:"params"`
	Response         string `json:"response"`
	ExpectedResponse string `json:"expectedResponse"`
}

// SubmissionResult aggregates per-case outcomes. SubmissionConfirm is true
// only if every case matched exactly (string equality after trimming).
type SubmissionResult struct {
	SubmissionConfirm bool         `json:"submissionConfirm"`
	DetailConfirm     []CaseResult `json:"detailConfirm"`
}
