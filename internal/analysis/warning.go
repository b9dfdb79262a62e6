package analysis

// WarningKind classifies a non-fatal condition of a run.
type WarningKind string

// Warning kinds.
const (
	// WarningDegradedSignal reports an optional input that was skipped or
	// contributed no rows, or a score column it lacked or could not parse.
	// The scores derived from it default to 0.
	WarningDegradedSignal WarningKind = "degraded_signal"
	// WarningNonConvergence reports an authority pass that hit its
	// iteration cap. Its scores are the last iterate.
	WarningNonConvergence WarningKind = "non_convergence"
)

// Warning is one non-fatal condition raised during a run.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Detail string      `json:"detail"`
}
