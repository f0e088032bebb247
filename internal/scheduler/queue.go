package scheduler

import (
	"sort"
	"time"

	"github.com/tsuji/bunkei/internal/models"
)

// isEligible reports whether a card belongs in the session queue. New cards
// are always eligible regardless of due time.
func (s *Scheduler) isEligible(card *models.Card, now time.Time) bool {
	if card.Graduated {
		return false
	}
	return card.State == models.StateNew || !card.Due.After(now)
}

// orderQueue sorts in place: New cards first by descending commonality,
// then everything else by due time. Ties break on id so the order is
// stable across runs.
func orderQueue(cards []*models.Card) {
	sort.Slice(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		aNew := a.State == models.StateNew
		bNew := b.State == models.StateNew
		switch {
		case aNew && bNew:
			if a.Commonality != b.Commonality {
				return a.Commonality > b.Commonality
			}
			return a.ID < b.ID
		case aNew != bNew:
			return aNew
		default:
			if !a.Due.Equal(b.Due) {
				return a.Due.Before(b.Due)
			}
			return a.ID < b.ID
		}
	})
}

func (s *Scheduler) rebuildQueue(max int) {
	if max <= 0 {
		max = s.cfg.QueueSize
	}
	now := s.now()
	eligible := make([]*models.Card, 0, len(s.cards))
	for _, c := range s.cards {
		if s.isEligible(c, now) {
			eligible = append(eligible, c)
		}
	}
	orderQueue(eligible)
	if len(eligible) > max {
		eligible = eligible[:max]
	}
	s.queue = eligible
	s.log.Debug("session queue rebuilt: size=%d max=%d", len(eligible), max)
}

// BuildSessionQueue rebuilds the session queue from the currently eligible
// cards, capped at max entries. max <= 0 uses the configured queue size.
// Returns copies of the queued cards in order.
func (s *Scheduler) BuildSessionQueue(max int) []models.Card {
	s.rebuildQueue(max)
	out := make([]models.Card, len(s.queue))
	for i, c := range s.queue {
		out[i] = c.Clone()
	}
	return out
}

// GetNextCard pops the next card for review, rebuilding the queue when it
// is empty. Queued cards reviewed since the last rebuild are dropped, so a
// review moving a card's due time never leaves a stale entry behind. When
// the front card repeats the pattern of the card just reviewed, the first
// card with a different pattern is pulled to the front instead; if every
// queued card shares that pattern the queue is served as is. Returns nil
// when nothing is due.
func (s *Scheduler) GetNextCard() *models.Card {
	now := s.now()
	if len(s.queue) > 0 {
		live := s.queue[:0]
		for _, c := range s.queue {
			if s.isEligible(c, now) {
				live = append(live, c)
			}
		}
		s.queue = live
	}
	if len(s.queue) == 0 {
		s.rebuildQueue(0)
	}
	if len(s.queue) == 0 {
		return nil
	}

	if s.lastPattern != "" && s.queue[0].PosPattern == s.lastPattern {
		for i := 1; i < len(s.queue); i++ {
			if s.queue[i].PosPattern != s.lastPattern {
				moved := s.queue[i]
				copy(s.queue[1:i+1], s.queue[:i])
				s.queue[0] = moved
				break
			}
		}
	}

	card := s.queue[0]
	s.queue = s.queue[1:]
	out := card.Clone()
	return &out
}

// DueCards returns every eligible card in queue order, uncapped. The
// session queue is not touched.
func (s *Scheduler) DueCards() []models.Card {
	now := s.now()
	eligible := make([]*models.Card, 0, len(s.cards))
	for _, c := range s.cards {
		if s.isEligible(c, now) {
			eligible = append(eligible, c)
		}
	}
	orderQueue(eligible)
	out := make([]models.Card, len(eligible))
	for i, c := range eligible {
		out[i] = c.Clone()
	}
	return out
}
