package classifier

import (
	"context"
	"fmt"
)

// RuleBased classifies drift from local statistics only: the overall volume
// sign/magnitude and the split of stands drifting up vs down. It never fails
// and never blocks.
type RuleBased struct{}

// NewRuleBased creates the deterministic classifier.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Classify implements DriftClassifier. The returned error is always nil.
func (r *RuleBased) Classify(_ context.Context, in Input) (Result, error) {
	if in.Report == nil {
		return Result{
			Cause:      CauseNoise,
			Confidence: 0.5,
			AlertText:  "No drift report available. No action needed.",
		}, nil
	}

	vol := in.Report.OverallVolumeDrift
	positiveStands, negativeStands := 0, 0
	for _, d := range in.Report.StandDrifts {
		if d > 0.2 {
			positiveStands++
		}
		if d < -0.3 {
			negativeStands++
		}
	}

	var cause, alert string
	switch {
	case negativeStands >= 1 && positiveStands >= 1:
		cause = CauseStandRedistribution
		alert = "Some stands are absorbing demand from underperforming stands. Consider redistributing staff."
	case vol > 0.3:
		cause = CauseVolumeSurge
		alert = fmt.Sprintf("Demand is running %+.0f%% above forecast. Scale up prep across all stands.", vol*100)
	case vol < -0.3:
		cause = CauseVolumeDrop
		alert = fmt.Sprintf("Demand is running %+.0f%% below forecast. Consider reducing prep to avoid waste.", vol*100)
	default:
		cause = CauseNoise
		alert = "Drift within normal variance. No action needed."
	}

	return Result{
		Cause:      cause,
		Confidence: 0.5,
		AlertText:  alert,
	}, nil
}
