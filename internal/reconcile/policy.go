package reconcile

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/scoring"
)

// Policy is everything that shapes one reconciliation run. It is passed per call.
// Scoring.ToleranceDays is ignored; the window tolerance applies to both search and scoring.
type Policy struct {
	Window        candidates.DateWindowPolicy
	Scoring       scoring.ScoringPolicy
	Concurrency   int           `validate:"gte=1,lte=256"`
	LookupTimeout time.Duration `validate:"gte=0"`
}

// DefaultPolicy is tolerance 1 day, 20 candidates, 40/30/15/15, exact 100, fuzzy 60,
// 8 concurrent lookups of at most 3s each.
func DefaultPolicy() Policy {
	return Policy{
		Window:        candidates.DefaultDateWindowPolicy(),
		Scoring:       scoring.DefaultScoringPolicy(),
		Concurrency:   8,
		LookupTimeout: 3 * time.Second,
	}
}

// PolicyFromConfig builds a policy from the reconcile configuration section.
func PolicyFromConfig(cfg common.ReconcileConfig) Policy {
	return Policy{
		Window: candidates.DateWindowPolicy{
			ToleranceDays: cfg.ToleranceDays,
			MaxCandidates: cfg.MaxCandidates,
		},
		Scoring: scoring.ScoringPolicy{
			ChassisWeight:   cfg.ChassisWeight,
			ContainerWeight: cfg.ContainerWeight,
			PickupWeight:    cfg.PickupWeight,
			DeliveryWeight:  cfg.DeliveryWeight,
			ToleranceDays:   cfg.ToleranceDays,
			ExactThreshold:  cfg.ExactThreshold,
			FuzzyThreshold:  cfg.FuzzyThreshold,
		},
		Concurrency:   cfg.Concurrency,
		LookupTimeout: cfg.LookupTimeout,
	}
}

var policyValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every bound and wraps failures in common.ErrInvalidPolicy.
func (p Policy) Validate() error {
	if err := policyValidator.Struct(p); err != nil {
		return common.NewAppError(common.CodeInvalidPolicy, err.Error(), common.ErrInvalidPolicy)
	}
	return nil
}

func (p Policy) scoringPolicy() scoring.ScoringPolicy {
	sp := p.Scoring
	sp.ToleranceDays = p.Window.ToleranceDays
	return sp
}
