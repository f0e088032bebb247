package scheduler

import (
	"sort"
	"time"

	"github.com/tsuji/bunkei/internal/models"
)

// patternGroup returns the card's sibling group, or "" when the card has
// no metadata or an empty group. Cards without a group never rotate.
func (s *Scheduler) patternGroup(id string) string {
	m, ok := s.meta[id]
	if !ok {
		return ""
	}
	return m.PatternGroup
}

// isCanonical reports whether the card is its group's representative.
// Missing metadata defaults to canonical.
func (s *Scheduler) isCanonical(id string) bool {
	m, ok := s.meta[id]
	if !ok {
		return true
	}
	return m.IsCanonical
}

func (s *Scheduler) setCanonical(id string, canonical bool) {
	if m, ok := s.meta[id]; ok {
		m.IsCanonical = canonical
		s.meta[id] = m
	}
}

// siblings returns the other cards in the same pattern group, sorted by id
// so random selection depends only on the injected rand source.
func (s *Scheduler) siblings(card *models.Card) []*models.Card {
	group := s.patternGroup(card.ID)
	if group == "" {
		return nil
	}
	var out []*models.Card
	for id, c := range s.cards {
		if id == card.ID {
			continue
		}
		if s.patternGroup(id) == group {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// graduationCheck retires a mastered card from rotation. Canonical cards
// swap places with a random graduated sibling so every group keeps exactly
// one canonical member in rotation; a canonical card with no graduated
// sibling stays. Non-canonical cards retire outright unless they are the
// group's last active member.
func (s *Scheduler) graduationCheck(card *models.Card, now time.Time) {
	if card.Graduated {
		return
	}
	if card.ConsecutiveCorrect < s.cfg.GraduationStreak {
		return
	}
	if card.ScheduledDays < s.cfg.GraduationMinIntervalDays {
		return
	}
	group := s.patternGroup(card.ID)
	if group == "" {
		return
	}

	sibs := s.siblings(card)

	if s.isCanonical(card.ID) {
		var graduated []*models.Card
		for _, sib := range sibs {
			if sib.Graduated {
				graduated = append(graduated, sib)
			}
		}
		if len(graduated) == 0 {
			s.log.Debug("canonical card retained, no graduated sibling: id=%s group=%s", card.ID, group)
			return
		}
		promoted := graduated[s.rng.Intn(len(graduated))]
		s.restoreToRotation(promoted, now, models.StateReview)
		s.retire(card, now)
		s.setCanonical(promoted.ID, true)
		s.setCanonical(card.ID, false)
		s.log.Info("canonical swap: retired=%s promoted=%s group=%s", card.ID, promoted.ID, group)
		return
	}

	active := 0
	for _, sib := range sibs {
		if !sib.Graduated {
			active++
		}
	}
	if active == 0 {
		s.log.Debug("graduation held, last active card in group: id=%s group=%s", card.ID, group)
		return
	}
	s.retire(card, now)
	s.log.Info("card graduated: id=%s group=%s", card.ID, group)
}

// reactivationCheck restores graduated siblings when a canonical card keeps
// failing. Repeated recent errors signal the whole pattern fading, so up to
// ReactivationMaxSiblings randomly chosen graduated siblings come back in
// Relearning, due immediately.
func (s *Scheduler) reactivationCheck(card *models.Card, now time.Time) {
	group := s.patternGroup(card.ID)
	if group == "" {
		return
	}
	if !s.isCanonical(card.ID) {
		return
	}
	if card.RecentErrors(now, s.cfg.ReactivationWindow) < s.cfg.ReactivationLapses {
		return
	}

	var graduated []*models.Card
	for _, sib := range s.siblings(card) {
		if sib.Graduated {
			graduated = append(graduated, sib)
		}
	}
	if len(graduated) == 0 {
		return
	}

	s.rng.Shuffle(len(graduated), func(i, j int) {
		graduated[i], graduated[j] = graduated[j], graduated[i]
	})
	n := s.cfg.ReactivationMaxSiblings
	if n > len(graduated) {
		n = len(graduated)
	}
	for _, sib := range graduated[:n] {
		s.restoreToRotation(sib, now, models.StateRelearning)
	}
	s.log.Info("reactivated %d graduated siblings: group=%s canonical=%s", n, group, card.ID)
}

func (s *Scheduler) retire(card *models.Card, now time.Time) {
	card.Graduated = true
	graduatedAt := now
	card.GraduationDate = &graduatedAt
}

// restoreToRotation brings a graduated card back into active rotation in
// the given state, due immediately, with its streak cleared.
func (s *Scheduler) restoreToRotation(card *models.Card, now time.Time, state models.State) {
	card.Graduated = false
	card.GraduationDate = nil
	card.State = state
	card.LearningStep = 0
	card.ConsecutiveCorrect = 0
	card.Due = now
}
