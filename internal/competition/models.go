package competition

import (
	"time"

	"stagevote/pkg/domain"
	dErrors "stagevote/pkg/domain-errors"
)

// Tier is the competition level in the advancement hierarchy.
type Tier string

const (
	TierLocal    Tier = "local"
	TierNational Tier = "national"
	TierGlobal   Tier = "global"
)

// ParseTier validates external input into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	switch t {
	case TierLocal, TierNational, TierGlobal:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid tier: "+s)
}

// TierRule describes how a tier behaves: whether competitions at this tier are
// scoped to one country, which tier winners advance into, and whether
// advancement aggregates all countries into a single destination. An explicit
// rule table instead of per-tier types keeps the variants in one place.
type TierRule struct {
	Next               Tier // "" means terminal tier, no advancement
	CountryScoped      bool // competitions at this tier require a country
	AggregateCountries bool // winners from all countries share one destination
}

var tierRules = map[Tier]TierRule{
	TierLocal:    {Next: TierNational, CountryScoped: true},
	TierNational: {Next: TierGlobal, CountryScoped: true, AggregateCountries: true},
	TierGlobal:   {},
}

// Rule returns the rule table entry for the tier.
func (t Tier) Rule() TierRule { return tierRules[t] }

// Status is the competition lifecycle state. Transitions are monotonic and
// single-directional: draft → open_for_participants → voting_open →
// voting_closed → finalized.
type Status string

const (
	StatusDraft               Status = "draft"
	StatusOpenForParticipants Status = "open_for_participants"
	StatusVotingOpen          Status = "voting_open"
	StatusVotingClosed        Status = "voting_closed"
	StatusFinalized           Status = "finalized"
)

var statusOrder = map[Status]int{
	StatusDraft:               0,
	StatusOpenForParticipants: 1,
	StatusVotingOpen:          2,
	StatusVotingClosed:        3,
	StatusFinalized:           4,
}

// IsValid checks the status is one of the lifecycle states.
func (s Status) IsValid() bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is a legal single
// forward step. Skipping states or moving backwards is never legal.
func (s Status) CanTransitionTo(next Status) bool {
	cur, ok := statusOrder[s]
	if !ok {
		return false
	}
	nxt, ok := statusOrder[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// VotingWindow bounds the period during which votes are accepted.
type VotingWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window (start inclusive,
// end exclusive).
func (w VotingWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether two windows share any instant.
func (w VotingWindow) Overlaps(other VotingWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Competition is one voting round at one tier.
type Competition struct {
	ID      domain.CompetitionID
	Name    string
	Tier    Tier
	Country string // required for country-scoped tiers, empty for global

	// ParentID links up the hierarchy: a local competition's parent is the
	// national competition its winners feed into. Competitions sharing a
	// parent are siblings.
	ParentID *domain.CompetitionID

	Status           Status
	Window           VotingWindow
	AdvancementQuota int

	// AllowSiblingOverlap must be set explicitly when this competition's
	// window overlaps a sibling's. Overlap is never permitted silently.
	AllowSiblingOverlap bool

	CreatedAt time.Time
}

// Validate enforces structural invariants at creation time.
func (c Competition) Validate() error {
	if c.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "competition name is required")
	}
	rule, ok := tierRules[c.Tier]
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid tier")
	}
	if rule.CountryScoped && c.Country == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "country is required for "+string(c.Tier)+" competitions")
	}
	if !rule.CountryScoped && c.Country != "" {
		return dErrors.New(dErrors.CodeInvalidInput, "country must be empty for "+string(c.Tier)+" competitions")
	}
	if !c.Window.End.After(c.Window.Start) {
		return dErrors.New(dErrors.CodeInvalidInput, "voting window end must be after start")
	}
	if c.AdvancementQuota < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "advancement quota cannot be negative")
	}
	if c.AdvancementQuota > 0 && rule.Next == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "terminal tier cannot have an advancement quota")
	}
	return nil
}

// VotingOpenAt reports whether votes are admissible at time t: status is
// voting_open and t is inside the window.
func (c Competition) VotingOpenAt(t time.Time) bool {
	return c.Status == StatusVotingOpen && c.Window.Contains(t)
}
