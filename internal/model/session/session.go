package session

import "time"

// Tier identifies which backend a session's calls are routed to.
type Tier string

const (
	// TierEnhanced routes calls to the agent API collaborator.
	TierEnhanced Tier = "enhanced"
	// TierBasic resolves every call locally with no upstream traffic.
	TierBasic Tier = "basic"
)

// Modes the agent understands. Stored as-is; the relay never
// interprets them beyond defaulting.
const (
	ModeAct  = "ACT"
	ModePlan = "PLAN"
)

// StatusActive is the only lifecycle state a session ever holds.
const StatusActive = "active"

// Session captures one ongoing conversation for the process lifetime.
// Tier and UpstreamRef are fixed at creation; only Mode and the
// merged upstream status change afterwards.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Mode         string    `json:"mode"`
	QualityLevel string    `json:"qualityLevel"`
	Tier         Tier      `json:"tier"`
	UpstreamRef  string    `json:"upstreamRef,omitempty"`
	Status       string    `json:"status"`

	// Upstream holds status fields reported by the enhanced tier,
	// overlaid best-effort on reads. Nil for basic sessions.
	Upstream map[string]any `json:"upstreamStatus,omitempty"`
}
