package models

import "time"

// MaxErrorHistory bounds the per-card error log; the oldest entry is
// dropped when a new one would exceed the cap.
const MaxErrorHistory = 10

// ErrorRecord is one classified mistake made while answering a drill.
type ErrorRecord struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorInfo is the optional mistake classification reported alongside a
// grade. The answer-checking collaborator produces it; the scheduler only
// stores it.
type ErrorInfo struct {
	Type string `json:"type"`
}

// Card is the per-drill memory record driving scheduling. Cards are created
// lazily the first time a drill is scheduled and never deleted; they can
// only be reset to New or marked graduated.
type Card struct {
	ID                 string        `json:"id"`
	Due                time.Time     `json:"due"`
	Stability          float64       `json:"stability"`
	Difficulty         float64       `json:"difficulty"`
	ElapsedDays        int           `json:"elapsed_days"`
	ScheduledDays      int           `json:"scheduled_days"`
	Reps               int           `json:"reps"`
	Lapses             int           `json:"lapses"`
	State              State         `json:"state"`
	LastReview         *time.Time    `json:"last_review,omitempty"`
	LearningStep       int           `json:"learning_step"`
	PosPattern         string        `json:"pos_pattern"`
	Commonality        float64       `json:"commonality"`
	Unit               string        `json:"unit"`
	ErrorHistory       []ErrorRecord `json:"error_history,omitempty"`
	Graduated          bool          `json:"graduated"`
	GraduationDate     *time.Time    `json:"graduation_date,omitempty"`
	ConsecutiveCorrect int           `json:"consecutive_correct"`
}

// Clone returns a deep copy of the card. Callers receive clones so they
// cannot mutate scheduler-owned state through returned values.
func (c Card) Clone() Card {
	out := c
	if c.LastReview != nil {
		t := *c.LastReview
		out.LastReview = &t
	}
	if c.GraduationDate != nil {
		t := *c.GraduationDate
		out.GraduationDate = &t
	}
	if c.ErrorHistory != nil {
		out.ErrorHistory = append([]ErrorRecord(nil), c.ErrorHistory...)
	}
	return out
}

// RecordError appends a mistake to the card's bounded error log.
func (c *Card) RecordError(rec ErrorRecord) {
	c.ErrorHistory = append(c.ErrorHistory, rec)
	if len(c.ErrorHistory) > MaxErrorHistory {
		c.ErrorHistory = c.ErrorHistory[len(c.ErrorHistory)-MaxErrorHistory:]
	}
}

// RecentErrors counts error records with timestamps inside the trailing
// window ending at now.
func (c *Card) RecentErrors(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, rec := range c.ErrorHistory {
		if !rec.Timestamp.Before(cutoff) && !rec.Timestamp.After(now) {
			n++
		}
	}
	return n
}

// DrillItem describes a drill entering the scheduler for the first time.
// Presentation content (the phrase text itself) stays with the caller.
type DrillItem struct {
	ID          string  `json:"id"`
	PosPattern  string  `json:"pos_pattern"`
	Commonality float64 `json:"commonality"`
	Unit        string  `json:"unit"`
}

// DrillMeta links a drill to its pattern group. Metadata is supplied by the
// curriculum loader each boot and is not persisted with the cards; a drill
// with no metadata entry or an empty PatternGroup has no siblings and never
// graduates or reactivates.
type DrillMeta struct {
	ID           string `json:"id"`
	PatternGroup string `json:"pattern_group,omitempty"`
	IsCanonical  bool   `json:"is_canonical"`
}
