// Package entitlement decides which features a learner's subscription tier
// unlocks.
package entitlement

import (
	"fmt"

	"github.com/psychx/careercoach/internal/model"
)

// Feature is a gated capability.
type Feature string

const (
	FeatureTracking   Feature = "tracking"
	FeatureBooking    Feature = "booking"
	FeatureRoadmap    Feature = "roadmap"
	FeatureAssessment Feature = "assessment"
)

// Limits are per-tier quotas.
type Limits struct {
	Assessments int
	Roadmaps    int
}

var tierLimits = map[model.Tier]Limits{
	model.TierFree:     {Assessments: 3, Roadmaps: 0},
	model.TierStandard: {Assessments: 6, Roadmaps: 6},
	model.TierPremium:  {Assessments: 100, Roadmaps: 100},
}

// LimitsFor returns the quotas for a tier. Unknown tiers get FREE limits.
func LimitsFor(t model.Tier) Limits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[model.TierFree]
}

// Denial reasons. They double as i18n message IDs.
const (
	ReasonUpgradeRequired = "EntitlementUpgradeRequired"
	ReasonRoadmapLimit    = "EntitlementRoadmapLimit"
	ReasonAssessmentLimit = "EntitlementAssessmentLimit"
	ReasonNotLearner      = "EntitlementNotLearner"
)

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed bool
	Reason  string
	// Limit is set for quota denials.
	Limit int
}

// Error makes a denied Decision usable as an error.
func (d Decision) Error() string {
	if d.Limit > 0 {
		return fmt.Sprintf("entitlement denied: %s (limit %d)", d.Reason, d.Limit)
	}
	return "entitlement denied: " + d.Reason
}

var allow = Decision{Allowed: true}

// Check reports whether u may use f. used is the current count for quota
// features and is ignored otherwise.
func Check(u *model.User, f Feature, used int) Decision {
	if u == nil || u.Role != model.UserRoleLearner {
		return Decision{Reason: ReasonNotLearner}
	}
	switch f {
	case FeatureTracking, FeatureBooking:
		if u.Tier == model.TierStandard || u.Tier == model.TierPremium {
			return allow
		}
		return Decision{Reason: ReasonUpgradeRequired}
	case FeatureRoadmap:
		limit := LimitsFor(u.Tier).Roadmaps
		if limit == 0 {
			return Decision{Reason: ReasonUpgradeRequired}
		}
		if used >= limit {
			return Decision{Reason: ReasonRoadmapLimit, Limit: limit}
		}
		return allow
	case FeatureAssessment:
		limit := LimitsFor(u.Tier).Assessments
		if used >= limit {
			return Decision{Reason: ReasonAssessmentLimit, Limit: limit}
		}
		return allow
	}
	return Decision{Reason: ReasonUpgradeRequired}
}
