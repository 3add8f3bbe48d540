// Package appeal assembles the deterministic re-evaluation context for a
// rejected submission. It never decides accept/reject itself — it maps GPS
// confidence to a human-readable tier, flags strong location evidence, and
// packages the original criteria with the player's explanation for the
// adjudicator.
package appeal

import "github.com/strollia/questhunt/internal/questhunt"

// strongSignalBar is the confidence above which location evidence alone is
// treated as a strong argument for reconsideration.
const strongSignalBar = 0.8

// ConfidenceLabel is the five-tier verbal rendering of a GPS confidence.
type ConfidenceLabel string

const (
	LabelExcellent  ConfidenceLabel = "excellent"
	LabelGood       ConfidenceLabel = "good"
	LabelFair       ConfidenceLabel = "fair"
	LabelUncertain  ConfidenceLabel = "uncertain"
	LabelUnreliable ConfidenceLabel = "unreliable"
)

// Label maps a [0,1] confidence to its tier.
func Label(confidence float64) ConfidenceLabel {
	switch {
	case confidence >= 0.9:
		return LabelExcellent
	case confidence >= 0.7:
		return LabelGood
	case confidence >= 0.5:
		return LabelFair
	case confidence >= 0.25:
		return LabelUncertain
	default:
		return LabelUnreliable
	}
}

// Context is everything the adjudicator needs to reconsider a rejection.
type Context struct {
	OriginalOutcome   questhunt.VerificationOutcome `json:"originalOutcome"`
	UserExplanation   string                        `json:"userExplanation"`
	GPSConfidence     float64                       `json:"gpsConfidence"`
	GPSLabel          ConfidenceLabel               `json:"gpsConfidenceLabel"`
	StrongGPSSignal   bool                          `json:"strongGpsSignal"`
	FailedCriteria    []questhunt.CriterionNote     `json:"failedCriteria"`
}

// Build packages the re-evaluation context. Pure and stateless.
func Build(original questhunt.VerificationOutcome, explanation string, gpsConfidence float64) Context {
	var failed []questhunt.CriterionNote
	for _, n := range original.PerCriterionNotes {
		if !n.Passed {
			failed = append(failed, n)
		}
	}

	return Context{
		OriginalOutcome: original,
		UserExplanation: explanation,
		GPSConfidence:   gpsConfidence,
		GPSLabel:        Label(gpsConfidence),
		StrongGPSSignal: gpsConfidence > strongSignalBar,
		FailedCriteria:  failed,
	}
}
