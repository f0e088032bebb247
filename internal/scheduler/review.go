package scheduler

import (
	"time"

	"github.com/tsuji/bunkei/internal/models"
)

const dayDuration = 24 * time.Hour

// ReviewResult reports the outcome of one processed review.
type ReviewResult struct {
	Card     models.Card
	Interval time.Duration
	NextDue  time.Time
}

// ProcessReview applies a graded review to a card and returns the updated
// card with its next interval. Unknown ids are a no-op returning nil.
// errInfo is optional; when present the error is appended to the card's
// bounded error history and feeds the reactivation check.
func (s *Scheduler) ProcessReview(id string, grade models.Grade, errInfo *models.ErrorInfo) *ReviewResult {
	card, ok := s.cards[id]
	if !ok {
		s.log.Debug("review for unknown card: id=%s", id)
		return nil
	}
	if !grade.IsValid() {
		s.log.Warn("review with invalid grade dropped: id=%s grade=%d", id, int(grade))
		return nil
	}
	now := s.now()

	elapsed := 0.0
	if card.LastReview != nil {
		elapsed = now.Sub(*card.LastReview).Hours() / 24
		if elapsed < 0 {
			elapsed = 0
		}
	}

	var interval time.Duration
	if card.State == models.StateReview {
		interval = s.reviewTransition(card, grade, elapsed)
	} else {
		interval = s.stepTransition(card, grade)
	}

	card.Due = now.Add(interval)
	card.ElapsedDays = int(elapsed)
	card.ScheduledDays = int(interval / dayDuration)
	card.Reps++
	reviewedAt := now
	card.LastReview = &reviewedAt

	s.session.Reviewed++
	if grade.IsCorrect() {
		s.session.Correct++
		card.ConsecutiveCorrect++
	} else {
		s.session.Incorrect++
		card.ConsecutiveCorrect = 0
	}

	if errInfo != nil {
		card.RecordError(models.ErrorRecord{Type: errInfo.Type, Timestamp: now})
	}

	if grade.IsCorrect() {
		s.graduationCheck(card, now)
	}
	if grade == models.Again {
		s.reactivationCheck(card, now)
	}

	s.lastPattern = card.PosPattern

	out := card.Clone()
	s.log.Debug("review processed: id=%s grade=%s state=%s interval=%s", id, grade, out.State, interval)
	return &ReviewResult{Card: out, Interval: interval, NextDue: out.Due}
}

// stepTransition advances a card through its learning or relearning steps
// and returns the next interval. New and Learning cards walk the learning
// steps; Relearning cards walk the relearning steps.
func (s *Scheduler) stepTransition(card *models.Card, grade models.Grade) time.Duration {
	steps := s.cfg.LearningSteps
	if card.State == models.StateRelearning {
		steps = s.cfg.RelearningSteps
	}

	switch grade {
	case models.Again:
		card.LearningStep = 0
		if card.State == models.StateNew {
			card.State = models.StateLearning
		}
		return steps[0]

	case models.Easy:
		s.enterReview(card, models.Easy)
		return time.Duration(s.cfg.EasyIntervalDays) * dayDuration

	default: // Hard, Good
		card.LearningStep++
		if card.LearningStep >= len(steps) {
			s.enterReview(card, grade)
			days := s.cfg.GraduatingIntervalDays
			if grade == models.Hard {
				days = 1
			}
			return time.Duration(days) * dayDuration
		}
		if card.State == models.StateNew {
			card.State = models.StateLearning
		}
		return steps[card.LearningStep]
	}
}

// reviewTransition applies the memory model to a Review-state card. Again
// is a lapse: stability is recomputed with the forget formula, difficulty
// is untouched, and the card drops into Relearning.
func (s *Scheduler) reviewTransition(card *models.Card, grade models.Grade, elapsedDays float64) time.Duration {
	retr := s.engine.Retrievability(elapsedDays, card.Stability)

	if grade == models.Again {
		card.Stability = s.engine.NextForgetStability(card.Difficulty, card.Stability, retr)
		card.Lapses++
		card.State = models.StateRelearning
		card.LearningStep = 0
		return s.cfg.RelearningSteps[0]
	}

	card.Stability = s.engine.NextReviewStability(card.Difficulty, card.Stability, retr, grade)
	card.Difficulty = s.engine.NextDifficulty(card.Difficulty, grade)
	days := s.engine.NextInterval(card.Stability)
	return time.Duration(days) * dayDuration
}

// enterReview seeds memory state from the graduating grade and moves the
// card into the Review state.
func (s *Scheduler) enterReview(card *models.Card, grade models.Grade) {
	card.State = models.StateReview
	card.LearningStep = 0
	card.Stability = s.engine.InitStability(grade)
	card.Difficulty = s.engine.InitDifficulty(grade)
}
