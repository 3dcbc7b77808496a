package domain

import "time"

// Outcome classifies what happened to a dataset group during assembly.
type Outcome string

const (
	// OutcomePass means the group merged and verified without corrections.
	OutcomePass Outcome = "pass"
	// OutcomeFixed means the group verified after one or more fix rules applied.
	OutcomeFixed Outcome = "fixed"
	// OutcomeRejected means the group is excluded from the result mapping.
	OutcomeRejected Outcome = "rejected"
)

// Stage names the assembly step a rejection happened in.
type Stage string

const (
	StageOpen   Stage = "open"
	StageFix    Stage = "fix"
	StageMerge  Stage = "merge"
	StageVerify Stage = "verify"
)

// Verdict records the per-group assembly outcome. Rejected verdicts carry the
// stage and reason; fixed verdicts carry the applied rule ids. Verdicts are
// the audit trail: every rejection is logged (and optionally published) once.
type Verdict struct {
	InstanceID   string    `json:"instance_id"`
	Outcome      Outcome   `json:"outcome"`
	Stage        Stage     `json:"stage,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	FixesApplied []string  `json:"fixes_applied,omitempty"`
	Time         time.Time `json:"time"`
}
