package reputation

import (
	"fmt"
	"sort"

	"github.com/citywatch/citywatch-api/internal/config"
)

// Tier is a named score bucket
type Tier struct {
	Name     string
	MinScore int
}

// Scale holds the scoring constants of one actor class. Tiers are ordered
// from best to worst and the worst tier starts at 0, so every score in
// [0, Ceiling] maps to exactly one tier.
type Scale struct {
	StartingScore     int
	Ceiling           int
	PriorityThreshold int
	Tiers             []Tier
	EventPoints       map[EventType]int
}

// Scales maps actor classes to their scale
type Scales map[ActorClass]Scale

// NewScales builds and validates the scales from policy
func NewScales(policy *config.Policy) (Scales, error) {
	scales := make(Scales, len(policy.Reputation))
	for name, cp := range policy.Reputation {
		class := ActorClass(name)
		if !class.Valid() {
			return nil, fmt.Errorf("reputation policy: unknown actor class %q", name)
		}

		tiers := make([]Tier, 0, len(cp.Tiers))
		for _, t := range cp.Tiers {
			tiers = append(tiers, Tier{Name: t.Name, MinScore: t.MinScore})
		}
		sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinScore > tiers[j].MinScore })

		points := make(map[EventType]int, len(cp.EventPoints))
		for raw, delta := range cp.EventPoints {
			eventType := EventType(raw)
			if err := checkEvent(class, eventType); err != nil {
				return nil, fmt.Errorf("reputation policy %s: event points for %q: %w", name, eventType, err)
			}
			points[eventType] = delta
		}

		scale := Scale{
			StartingScore:     cp.StartingScore,
			Ceiling:           cp.Ceiling,
			PriorityThreshold: cp.PriorityThreshold,
			Tiers:             tiers,
			EventPoints:       points,
		}
		if err := scale.validate(); err != nil {
			return nil, fmt.Errorf("reputation policy %s: %w", name, err)
		}
		scales[class] = scale
	}

	for _, class := range []ActorClass{ClassUser, ClassOfficer, ClassSeller} {
		if _, ok := scales[class]; !ok {
			return nil, fmt.Errorf("reputation policy: missing actor class %q", class)
		}
	}
	return scales, nil
}

func (s Scale) validate() error {
	if s.Ceiling <= 0 {
		return fmt.Errorf("ceiling must be positive")
	}
	if s.StartingScore < 0 || s.StartingScore > s.Ceiling {
		return fmt.Errorf("starting score %d outside [0, %d]", s.StartingScore, s.Ceiling)
	}
	if len(s.Tiers) == 0 {
		return fmt.Errorf("no tiers")
	}
	for i := 1; i < len(s.Tiers); i++ {
		if s.Tiers[i].MinScore == s.Tiers[i-1].MinScore {
			return fmt.Errorf("tiers %s and %s share cutoff %d", s.Tiers[i-1].Name, s.Tiers[i].Name, s.Tiers[i].MinScore)
		}
	}
	if s.Tiers[len(s.Tiers)-1].MinScore != 0 {
		return fmt.Errorf("lowest tier must start at 0")
	}
	return nil
}

// TierFor returns the tier containing score
func (s Scale) TierFor(score int) string {
	for _, t := range s.Tiers {
		if score >= t.MinScore {
			return t.Name
		}
	}
	return s.Tiers[len(s.Tiers)-1].Name
}

// Worst returns the name of the lowest tier
func (s Scale) Worst() string {
	return s.Tiers[len(s.Tiers)-1].Name
}

// PointsFor returns the configured delta of eventType, zero when unset
func (s Scale) PointsFor(eventType EventType) int {
	return s.EventPoints[eventType]
}

// Clamp limits score to [0, Ceiling]
func (s Scale) Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > s.Ceiling {
		return s.Ceiling
	}
	return score
}

// Init sets the scores an unseen actor starts with
func (s Scale) Init(r *Record) {
	r.CurrentScore = s.StartingScore
	r.LifetimeScore = s.StartingScore
	r.Tier = s.TierFor(s.StartingScore)
}

// Apply mutates rec by one event: clamped current score, unclamped
// lifetime score, class counters, tier and priority flag.
func (s Scale) Apply(rec *Record, eventType EventType, delta int) {
	rec.CurrentScore = s.Clamp(rec.CurrentScore + delta)
	rec.LifetimeScore += delta

	switch eventType {
	case EventViolation:
		rec.ViolationsCount++
	case EventRollback:
		if rec.ViolationsCount > 0 {
			rec.ViolationsCount--
		}
	case EventCaseHandled:
		rec.CasesHandled++
	case EventCaseResolved:
		rec.SuccessfulResolutions++
	case EventOrderFulfilled:
		rec.OrdersFulfilled++
	case EventOrderCancelled:
		rec.OrdersCancelled++
	}

	rec.Tier = s.TierFor(rec.CurrentScore)
	rec.PriorityFlag = (s.PriorityThreshold > 0 && rec.ViolationsCount >= s.PriorityThreshold) || rec.Tier == s.Worst()
}

func checkEvent(class ActorClass, eventType EventType) error {
	if !class.Valid() {
		return ErrUnknownClass
	}
	classes, ok := allowedClasses[eventType]
	if !ok {
		return ErrUnknownEventType
	}
	if classes == nil {
		return nil
	}
	for _, c := range classes {
		if c == class {
			return nil
		}
	}
	return ErrEventNotAllowed
}
