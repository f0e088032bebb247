package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsuji/bunkei/internal/models"
)

// stagedReviewCard builds a Review-state card with no elapsed time, so a
// Good review keeps its stability and yields a predictable interval.
func stagedReviewCard(id, pattern string, stability float64, streak int) *models.Card {
	return &models.Card{
		ID:                 id,
		State:              models.StateReview,
		Due:                testBase,
		Stability:          stability,
		Difficulty:         5,
		PosPattern:         pattern,
		Commonality:        0.5,
		Unit:               "unit-1",
		ConsecutiveCorrect: streak,
	}
}

func stagedGraduatedCard(id, pattern string) *models.Card {
	retiredAt := testBase.Add(-10 * 24 * time.Hour)
	return &models.Card{
		ID:             id,
		State:          models.StateReview,
		Due:            testBase.Add(90 * 24 * time.Hour),
		Stability:      30,
		Difficulty:     4,
		PosPattern:     pattern,
		Commonality:    0.5,
		Unit:           "unit-1",
		Graduated:      true,
		GraduationDate: &retiredAt,
	}
}

func seedMeta(s *Scheduler, group, canonicalID string, ids ...string) {
	metas := make([]models.DrillMeta, 0, len(ids))
	for _, id := range ids {
		metas = append(metas, models.DrillMeta{ID: id, PatternGroup: group, IsCanonical: id == canonicalID})
	}
	s.LoadDrillMeta(metas)
}

func TestGraduation_RequiresStreak(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["canon"] = stagedReviewCard("canon", "p1", 40, 3)
	s.cards["sib"] = stagedGraduatedCard("sib", "p1")
	seedMeta(s, "group-1", "canon", "canon", "sib")

	res := s.ProcessReview("canon", models.Good, nil)
	require.NotNil(t, res)
	assert.Equal(t, 4, res.Card.ConsecutiveCorrect)
	assert.False(t, res.Card.Graduated, "streak of 4 is below the threshold")
	assert.True(t, s.cards["sib"].Graduated)

	res = s.ProcessReview("canon", models.Good, nil)
	require.NotNil(t, res)
	assert.Equal(t, 5, res.Card.ConsecutiveCorrect)
	assert.True(t, res.Card.Graduated, "the fifth consecutive correct answer retires the card")
}

func TestGraduation_RequiresMinimumInterval(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["canon"] = stagedReviewCard("canon", "p1", 0.5, 10)
	s.cards["sib"] = stagedGraduatedCard("sib", "p1")
	seedMeta(s, "group-1", "canon", "canon", "sib")

	res := s.ProcessReview("canon", models.Good, nil)
	require.NotNil(t, res)
	assert.Less(t, res.Card.ScheduledDays, 16)
	assert.False(t, res.Card.Graduated, "short intervals block graduation regardless of streak")
}

func TestGraduation_CanonicalSwapsWithGraduatedSibling(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["canon"] = stagedReviewCard("canon", "p1", 40, 4)
	s.cards["sib"] = stagedGraduatedCard("sib", "p1")
	seedMeta(s, "group-1", "canon", "canon", "sib")

	res := s.ProcessReview("canon", models.Good, nil)
	require.NotNil(t, res)

	assert.True(t, res.Card.Graduated, "the canonical card retires")
	require.NotNil(t, res.Card.GraduationDate)
	assert.Equal(t, clock.Now(), *res.Card.GraduationDate)
	assert.False(t, s.isCanonical("canon"), "the retired card hands off its canonical role")

	sib := s.cards["sib"]
	assert.False(t, sib.Graduated, "the sibling returns to rotation")
	assert.Nil(t, sib.GraduationDate)
	assert.Equal(t, models.StateReview, sib.State)
	assert.Equal(t, clock.Now(), sib.Due, "the promoted sibling is due immediately")
	assert.Equal(t, 0, sib.ConsecutiveCorrect)
	assert.True(t, s.isCanonical("sib"))
}

func TestGraduation_CanonicalRetainedWithoutGraduatedSibling(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["canon"] = stagedReviewCard("canon", "p1", 40, 4)
	s.cards["active-sib"] = stagedReviewCard("active-sib", "p1", 10, 0)
	seedMeta(s, "group-1", "canon", "canon", "active-sib")

	res := s.ProcessReview("canon", models.Good, nil)
	require.NotNil(t, res)

	assert.False(t, res.Card.Graduated, "a canonical card with nothing to swap in stays")
	assert.True(t, s.isCanonical("canon"))
	assert.False(t, s.cards["active-sib"].Graduated)
}

func TestGraduation_NonCanonicalRetiresOutright(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["canon"] = stagedReviewCard("canon", "p1", 10, 0)
	s.cards["extra"] = stagedReviewCard("extra", "p1", 40, 4)
	seedMeta(s, "group-1", "canon", "canon", "extra")

	res := s.ProcessReview("extra", models.Good, nil)
	require.NotNil(t, res)

	assert.True(t, res.Card.Graduated)
	require.NotNil(t, res.Card.GraduationDate)
	assert.False(t, s.cards["canon"].Graduated, "the canonical card is untouched")
	assert.True(t, s.isCanonical("canon"))
	assert.False(t, s.isCanonical("extra"))
}

func TestGraduation_LastActiveCardIsHeld(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["extra"] = stagedReviewCard("extra", "p1", 40, 4)
	s.cards["sib"] = stagedGraduatedCard("sib", "p1")
	seedMeta(s, "group-1", "canon-gone", "extra", "sib")

	res := s.ProcessReview("extra", models.Good, nil)
	require.NotNil(t, res)

	assert.False(t, res.Card.Graduated, "the group must keep at least one active card")
}

func TestGraduation_NoGroupNeverGraduates(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["loner"] = stagedReviewCard("loner", "p1", 40, 10)

	res := s.ProcessReview("loner", models.Good, nil)
	require.NotNil(t, res)

	assert.False(t, res.Card.Graduated, "cards without a pattern group stay in rotation forever")
}

func TestReactivation_RestoresUpToMaxSiblings(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["canon"] = stagedReviewCard("canon", "p1", 40, 0)
	sibIDs := []string{"sib-1", "sib-2", "sib-3", "sib-4"}
	for _, id := range sibIDs {
		s.cards[id] = stagedGraduatedCard(id, "p1")
	}
	seedMeta(s, "group-1", "canon", append([]string{"canon"}, sibIDs...)...)

	res := s.ProcessReview("canon", models.Again, &models.ErrorInfo{Type: "particle"})
	require.NotNil(t, res)
	for _, id := range sibIDs {
		assert.True(t, s.cards[id].Graduated, "one recent error is below the threshold")
	}

	clock.Advance(time.Minute)
	res = s.ProcessReview("canon", models.Again, &models.ErrorInfo{Type: "particle"})
	require.NotNil(t, res)

	restored := 0
	for _, id := range sibIDs {
		sib := s.cards[id]
		if sib.Graduated {
			continue
		}
		restored++
		assert.Equal(t, models.StateRelearning, sib.State, "%s comes back in Relearning", id)
		assert.Equal(t, 0, sib.LearningStep)
		assert.Equal(t, 0, sib.ConsecutiveCorrect)
		assert.Equal(t, clock.Now(), sib.Due, "%s is due immediately", id)
		assert.Nil(t, sib.GraduationDate)
	}
	assert.Equal(t, 3, restored, "reactivation is capped at three siblings")
}

func TestReactivation_IgnoresStaleErrors(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	canon := stagedReviewCard("canon", "p1", 40, 0)
	canon.ErrorHistory = []models.ErrorRecord{
		{Type: "old", Timestamp: testBase.Add(-40 * 24 * time.Hour)},
	}
	s.cards["canon"] = canon
	s.cards["sib"] = stagedGraduatedCard("sib", "p1")
	seedMeta(s, "group-1", "canon", "canon", "sib")

	res := s.ProcessReview("canon", models.Again, &models.ErrorInfo{Type: "fresh"})
	require.NotNil(t, res)

	assert.True(t, s.cards["sib"].Graduated, "errors outside the window do not count")
}

func TestReactivation_OnlyCanonicalTriggers(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["canon"] = stagedReviewCard("canon", "p1", 40, 0)
	s.cards["extra"] = stagedReviewCard("extra", "p1", 40, 0)
	s.cards["sib"] = stagedGraduatedCard("sib", "p1")
	seedMeta(s, "group-1", "canon", "canon", "extra", "sib")

	s.ProcessReview("extra", models.Again, &models.ErrorInfo{Type: "particle"})
	clock.Advance(time.Minute)
	s.ProcessReview("extra", models.Again, &models.ErrorInfo{Type: "particle"})

	assert.True(t, s.cards["sib"].Graduated, "non-canonical lapses do not reactivate the group")
}

func TestReactivation_RequiresRecordedErrors(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock, Config{})
	s.cards["canon"] = stagedReviewCard("canon", "p1", 40, 0)
	s.cards["sib"] = stagedGraduatedCard("sib", "p1")
	seedMeta(s, "group-1", "canon", "canon", "sib")

	s.ProcessReview("canon", models.Again, nil)
	clock.Advance(time.Minute)
	s.ProcessReview("canon", models.Again, nil)

	assert.True(t, s.cards["sib"].Graduated, "lapses without error details never reactivate")
}
