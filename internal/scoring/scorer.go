package scoring

import (
	"time"

	"github.com/joseph-ayodele/tms-reconciler/constants"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/normalize"
)

// MaxConfidence caps every score.
const MaxConfidence = 100

// ScoringPolicy holds the rubric weights and bucket thresholds.
type ScoringPolicy struct {
	ChassisWeight   int `validate:"gte=0,lte=100"`
	ContainerWeight int `validate:"gte=0,lte=100"`
	PickupWeight    int `validate:"gte=0,lte=100"`
	DeliveryWeight  int `validate:"gte=0,lte=100"`
	ToleranceDays   int `validate:"gte=0,lte=365"`
	ExactThreshold  int `validate:"gte=1,lte=100"`
	FuzzyThreshold  int `validate:"gte=0,lte=100,ltefield=ExactThreshold"`
}

// DefaultScoringPolicy is 40/30/15/15 with exact at 100 and fuzzy at 60.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		ChassisWeight:   40,
		ContainerWeight: 30,
		PickupWeight:    15,
		DeliveryWeight:  15,
		ToleranceDays:   1,
		ExactThreshold:  100,
		FuzzyThreshold:  60,
	}
}

// Bucket maps a confidence onto a match type.
func (p ScoringPolicy) Bucket(confidence int) constants.MatchType {
	switch {
	case confidence >= p.ExactThreshold:
		return constants.MatchExact
	case confidence >= p.FuzzyThreshold:
		return constants.MatchFuzzy
	default:
		return constants.MatchMismatch
	}
}

// Scorer applies a fixed rubric to (line, record) pairs. It is stateless and safe for
// concurrent use.
type Scorer struct {
	policy ScoringPolicy
}

func NewScorer(policy ScoringPolicy) *Scorer {
	return &Scorer{policy: policy}
}

// Policy returns the rubric the scorer was built with.
func (s *Scorer) Policy() ScoringPolicy {
	return s.policy
}

// Score evaluates every check independently and appends reasons in rubric order.
// A blank record field never earns credit.
func (s *Scorer) Score(line normalize.LineItem, rec entity.ShipmentRecord) entity.MatchCandidate {
	keys := normalize.Record(rec)
	p := s.policy

	confidence := 0
	reasons := make([]string, 0, 4)

	if line.ChassisKey != "" && line.ChassisKey == keys.ChassisKey {
		confidence += p.ChassisWeight
		reasons = append(reasons, constants.ReasonChassisMatch)
	}
	if keys.ContainerKey != "" && line.HasContainer(keys.ContainerKey) {
		confidence += p.ContainerWeight
		reasons = append(reasons, constants.ReasonContainerMatch)
	}
	if withinTolerance(line.DateOut, keys.Pickup, p.ToleranceDays) {
		confidence += p.PickupWeight
		reasons = append(reasons, constants.ReasonPickupDate)
	}
	if withinTolerance(line.DateIn, keys.Delivery, p.ToleranceDays) {
		confidence += p.DeliveryWeight
		reasons = append(reasons, constants.ReasonDeliveryDate)
	}

	if confidence > MaxConfidence {
		confidence = MaxConfidence
	}
	return entity.MatchCandidate{
		Record:       rec,
		Confidence:   confidence,
		MatchReasons: reasons,
		MatchType:    p.Bucket(confidence),
	}
}

func withinTolerance(lineDate normalize.DateResult, recDate *time.Time, tolerance int) bool {
	if !lineDate.Valid || recDate == nil {
		return false
	}
	return normalize.AbsDays(lineDate.Time, *recDate) <= tolerance
}

// DeliveryGap is |dateIn - delivery| in days, or -1 when either date is missing.
func DeliveryGap(line normalize.LineItem, rec entity.ShipmentRecord) int {
	delivery := normalize.Record(rec).Delivery
	if !line.DateIn.Valid || delivery == nil {
		return -1
	}
	return normalize.AbsDays(line.DateIn.Time, *delivery)
}

// Best picks the highest-confidence candidate. Ties go to the smaller delivery gap
// (a missing gap loses to any known one), then to the earliest candidate.
// ok is false when candidates is empty.
func Best(line normalize.LineItem, candidates []entity.MatchCandidate) (best entity.MatchCandidate, ok bool) {
	bestIdx := -1
	bestGap := -1
	for i, c := range candidates {
		gap := DeliveryGap(line, c.Record)
		if bestIdx < 0 || better(c.Confidence, gap, candidates[bestIdx].Confidence, bestGap) {
			bestIdx, bestGap = i, gap
		}
	}
	if bestIdx < 0 {
		return entity.MatchCandidate{}, false
	}
	return candidates[bestIdx], true
}

func better(conf, gap, bestConf, bestGap int) bool {
	if conf != bestConf {
		return conf > bestConf
	}
	if gap < 0 {
		return false
	}
	return bestGap < 0 || gap < bestGap
}
