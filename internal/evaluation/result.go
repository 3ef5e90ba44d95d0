package evaluation

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Result summarises an evaluation run over labelled test samples
type Result struct {
	RunID      string    `json:"run_id"`
	Attack     string    `json:"attack"`
	Dataset    string    `json:"dataset,omitempty"`
	Generator  string    `json:"generator"`
	FeatureSet string    `json:"feature_set"`
	TargetID   int       `json:"target_id"`
	StartedAt  time.Time `json:"started_at"`

	Accuracy          float64 `json:"accuracy"`
	TruePositiveRate  float64 `json:"true_positive_rate"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	// Advantage is TPR - FPR
	Advantage float64 `json:"advantage"`
	// MeanScore is the mean probability given to the true label
	MeanScore float64 `json:"mean_score"`

	Labels  []int     `json:"labels"`
	Guesses []int     `json:"guesses"`
	Scores  []float64 `json:"scores"`

	TrainingDuration time.Duration `json:"training_duration"`
	TestDuration     time.Duration `json:"test_duration"`
}

// score fills the summary statistics from labels, guesses and scores
func (r *Result) score() {
	var tp, fp, tn, fn float64
	for i, label := range r.Labels {
		switch {
		case label == 1 && r.Guesses[i] == 1:
			tp++
		case label == 1:
			fn++
		case r.Guesses[i] == 1:
			fp++
		default:
			tn++
		}
	}

	if n := tp + fp + tn + fn; n > 0 {
		r.Accuracy = (tp + tn) / n
	}
	if tp+fn > 0 {
		r.TruePositiveRate = tp / (tp + fn)
	}
	if fp+tn > 0 {
		r.FalsePositiveRate = fp / (fp + tn)
	}
	r.Advantage = r.TruePositiveRate - r.FalsePositiveRate

	if len(r.Scores) > 0 {
		r.MeanScore = stat.Mean(r.Scores, nil)
	}
}
