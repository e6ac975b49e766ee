package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psychx/careercoach/internal/model"
)

func learner(tier model.Tier) *model.User {
	return &model.User{Role: model.UserRoleLearner, Tier: tier}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		user    *model.User
		feature Feature
		used    int
		allowed bool
		reason  string
	}{
		{"free cannot track", learner(model.TierFree), FeatureTracking, 0, false, ReasonUpgradeRequired},
		{"free cannot book", learner(model.TierFree), FeatureBooking, 0, false, ReasonUpgradeRequired},
		{"standard can book", learner(model.TierStandard), FeatureBooking, 0, true, ""},
		{"premium can track", learner(model.TierPremium), FeatureTracking, 0, true, ""},
		{"free has no roadmaps", learner(model.TierFree), FeatureRoadmap, 0, false, ReasonUpgradeRequired},
		{"standard under roadmap limit", learner(model.TierStandard), FeatureRoadmap, 5, true, ""},
		{"standard at roadmap limit", learner(model.TierStandard), FeatureRoadmap, 6, false, ReasonRoadmapLimit},
		{"premium roadmap", learner(model.TierPremium), FeatureRoadmap, 99, true, ""},
		{"free gets assessments", learner(model.TierFree), FeatureAssessment, 2, true, ""},
		{"free at assessment limit", learner(model.TierFree), FeatureAssessment, 3, false, ReasonAssessmentLimit},
		{"standard at assessment limit", learner(model.TierStandard), FeatureAssessment, 6, false, ReasonAssessmentLimit},
		{"premium assessments", learner(model.TierPremium), FeatureAssessment, 99, true, ""},
		{"unknown tier uses free assessment quota", learner("gold"), FeatureAssessment, 3, false, ReasonAssessmentLimit},
		{"consultant assessment", &model.User{Role: model.UserRoleConsultant}, FeatureAssessment, 0, false, ReasonNotLearner},
		{"nil user", nil, FeatureBooking, 0, false, ReasonNotLearner},
		{"consultant", &model.User{Role: model.UserRoleConsultant, Tier: model.TierPremium}, FeatureBooking, 0, false, ReasonNotLearner},
		{"unknown tier", learner("gold"), FeatureTracking, 0, false, ReasonUpgradeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Check(tt.user, tt.feature, tt.used)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestLimitsFor(t *testing.T) {
	assert.Equal(t, Limits{Assessments: 6, Roadmaps: 6}, LimitsFor(model.TierStandard))
	assert.Equal(t, LimitsFor(model.TierFree), LimitsFor("unknown"))
}

func TestDecisionError(t *testing.T) {
	d := Check(learner(model.TierStandard), FeatureRoadmap, 6)
	assert.Contains(t, d.Error(), "limit 6")

	d = Check(learner(model.TierFree), FeatureAssessment, 3)
	assert.Equal(t, 3, d.Limit)
	assert.Contains(t, d.Error(), ReasonAssessmentLimit)
}
