package models

import "time"

// SessionStats counts reviews over the current process lifetime. The
// counters reset on restart and are never persisted.
type SessionStats struct {
	Reviewed  int `json:"reviewed"`
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
}

// CardStat is the per-card row of the stats view.
type CardStat struct {
	ID                 string    `json:"id"`
	State              State     `json:"state"`
	Due                time.Time `json:"due"`
	Stability          float64   `json:"stability"`
	Difficulty         float64   `json:"difficulty"`
	Reps               int       `json:"reps"`
	Lapses             int       `json:"lapses"`
	PosPattern         string    `json:"pos_pattern"`
	Commonality        float64   `json:"commonality"`
	Unit               string    `json:"unit"`
	Graduated          bool      `json:"graduated"`
	ConsecutiveCorrect int       `json:"consecutive_correct"`
}

// Stats is the aggregate scheduler view for display.
type Stats struct {
	TotalCards      int          `json:"total_cards"`
	NewCards        int          `json:"new_cards"`
	LearningCards   int          `json:"learning_cards"`
	ReviewCards     int          `json:"review_cards"`
	RelearningCards int          `json:"relearning_cards"`
	DueNow          int          `json:"due_now"`
	GraduatedCards  int          `json:"graduated_cards"`
	AvgStability    float64      `json:"avg_stability"`
	AvgDifficulty   float64      `json:"avg_difficulty"`
	Session         SessionStats `json:"session"`
	Cards           []CardStat   `json:"cards"`
}
