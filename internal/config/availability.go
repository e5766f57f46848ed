package config

// AIMode describes how the NotebookLM side of the pipeline operates.
// Guided and Automated are mutually exclusive by construction: there is no
// way to represent "guided and automated at once".
type AIMode int

const (
	// AIModeDisabled means NotebookLM is not used at all.
	AIModeDisabled AIMode = iota
	// AIModeAutomated drives the NotebookLM UI through the browser.
	AIModeAutomated
	// AIModeGuided prepares prompt text for a human to paste manually.
	AIModeGuided
)

// String returns the mode name.
func (m AIMode) String() string {
	switch m {
	case AIModeAutomated:
		return "automated"
	case AIModeGuided:
		return "guided"
	default:
		return "disabled"
	}
}

// Availability is the per-run snapshot of which AI backends may be used.
// It is read once at run start and never mutated.
type Availability struct {
	NotebookLM AIMode
	DeepSeek   bool // hosted LLM configured (provider-agnostic flag name kept for config compat)
}

// NormalizeAvailability folds the two legacy booleans into the tagged mode.
// Guided wins: enabling guided mode disables browser automation.
func NormalizeAvailability(notebooklmEnabled, notebooklmGuided, hostedEnabled bool) Availability {
	mode := AIModeDisabled
	switch {
	case notebooklmGuided:
		mode = AIModeGuided
	case notebooklmEnabled:
		mode = AIModeAutomated
	}
	return Availability{NotebookLM: mode, DeepSeek: hostedEnabled}
}

// NotebookLMAvailable reports whether automated NotebookLM driving is on.
func (a Availability) NotebookLMAvailable() bool {
	return a.NotebookLM == AIModeAutomated
}

// NotebookLMGuided reports whether guided (manual) mode is on.
func (a Availability) NotebookLMGuided() bool {
	return a.NotebookLM == AIModeGuided
}

// Availability derives the run availability snapshot from the AI config.
// An enabled hosted LLM without a credential still counts as "configured"
// here; the missing key is surfaced as a credential failure at the synthesis
// step, not during routing.
func (c AIConfig) Availability() Availability {
	return NormalizeAvailability(c.NotebookLMEnabled, c.NotebookLMGuided, c.DeepSeekEnabled)
}
