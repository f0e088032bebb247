// Package scheduler implements the spaced-repetition core: the per-card
// review state machine, the due-card session queue, and the pattern-group
// graduation/reactivation rotation.
//
// A Scheduler owns its card map, session queue, and last-drawn-pattern
// memory. It performs no locking and no I/O: operations are synchronous,
// bounded computations, and the embedding layer is responsible for
// serializing access (single writer) and for persisting snapshots.
package scheduler

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/tsuji/bunkei/internal/fsrs"
	"github.com/tsuji/bunkei/internal/logger"
	"github.com/tsuji/bunkei/internal/models"
)

const snapshotVersion = 1

// Config holds the scheduling knobs. Zero values fall back to defaults, so
// Config{} yields a working scheduler.
type Config struct {
	// Params configures the memory model. Zero value means fsrs.DefaultParams.
	Params fsrs.Params

	// LearningSteps are the short intervals a New/Learning card walks
	// through before entering Review. Default [1m, 10m].
	LearningSteps []time.Duration
	// RelearningSteps are the steps after a lapse. Default [1m, 10m].
	RelearningSteps []time.Duration

	// GraduatingIntervalDays is the first Review interval after finishing
	// the learning steps with Good. Default 1.
	GraduatingIntervalDays int
	// EasyIntervalDays is the first Review interval after an Easy grade in
	// a learning state. Default 4.
	EasyIntervalDays int

	// QueueSize caps the session queue. Default 20.
	QueueSize int

	// GraduationStreak is the consecutive-correct count required before a
	// card can be retired from rotation. Default 5.
	GraduationStreak int
	// GraduationMinIntervalDays is the minimum scheduled interval required
	// before a card can be retired. Default 16.
	GraduationMinIntervalDays int

	// ReactivationLapses is how many recent errors on a canonical card
	// bring its graduated siblings back. Default 2.
	ReactivationLapses int
	// ReactivationWindow is the trailing window recent errors are counted
	// in. Default 30 days.
	ReactivationWindow time.Duration
	// ReactivationMaxSiblings caps how many siblings one lapse restores.
	// Default 3.
	ReactivationMaxSiblings int

	// Rand drives sibling selection. Tests inject a seeded source to make
	// rotation deterministic. Default is time-seeded.
	Rand *rand.Rand
	// Now supplies the clock. Default time.Now.
	Now func() time.Time
	// Logger defaults to the package default logger.
	Logger *logger.Logger
}

func (c Config) withDefaults() Config {
	if c.Params == (fsrs.Params{}) {
		c.Params = fsrs.DefaultParams()
	}
	if len(c.LearningSteps) == 0 {
		c.LearningSteps = []time.Duration{time.Minute, 10 * time.Minute}
	}
	if len(c.RelearningSteps) == 0 {
		c.RelearningSteps = []time.Duration{time.Minute, 10 * time.Minute}
	}
	if c.GraduatingIntervalDays <= 0 {
		c.GraduatingIntervalDays = 1
	}
	if c.EasyIntervalDays <= 0 {
		c.EasyIntervalDays = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 20
	}
	if c.GraduationStreak <= 0 {
		c.GraduationStreak = 5
	}
	if c.GraduationMinIntervalDays <= 0 {
		c.GraduationMinIntervalDays = 16
	}
	if c.ReactivationLapses <= 0 {
		c.ReactivationLapses = 2
	}
	if c.ReactivationWindow <= 0 {
		c.ReactivationWindow = 30 * 24 * time.Hour
	}
	if c.ReactivationMaxSiblings <= 0 {
		c.ReactivationMaxSiblings = 3
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logger.Default().WithPrefix("scheduler")
	}
	return c
}

// Scheduler owns the card set and all scheduling state for one learner.
type Scheduler struct {
	cfg    Config
	engine *fsrs.Engine

	cards map[string]*models.Card
	meta  map[string]models.DrillMeta

	queue       []*models.Card
	lastPattern string
	session     models.SessionStats

	rng *rand.Rand
	now func() time.Time
	log *logger.Logger
}

// New creates a Scheduler with an empty card set.
func New(cfg Config) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	engine, err := fsrs.New(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler parameters: %w", err)
	}
	return &Scheduler{
		cfg:    cfg,
		engine: engine,
		cards:  make(map[string]*models.Card),
		meta:   make(map[string]models.DrillMeta),
		rng:    cfg.Rand,
		now:    cfg.Now,
		log:    cfg.Logger,
	}, nil
}

// InitializeCards creates a card for every drill item that does not have
// one yet. Existing cards keep their scheduling state untouched. Returns
// the number of cards created.
func (s *Scheduler) InitializeCards(items []models.DrillItem) int {
	now := s.now()
	created := 0
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, ok := s.cards[item.ID]; ok {
			continue
		}
		s.cards[item.ID] = &models.Card{
			ID:          item.ID,
			Due:         now,
			PosPattern:  item.PosPattern,
			Commonality: item.Commonality,
			Unit:        item.Unit,
		}
		created++
	}
	if created > 0 {
		s.log.Debug("initialized %d new cards (%d total)", created, len(s.cards))
	}
	return created
}

// LoadDrillMeta loads or replaces pattern-group metadata. Records for ids
// without cards are kept; their cards may be initialized later. Returns the
// number of records loaded.
func (s *Scheduler) LoadDrillMeta(metas []models.DrillMeta) int {
	loaded := 0
	for _, m := range metas {
		if m.ID == "" {
			continue
		}
		s.meta[m.ID] = m
		loaded++
	}
	s.log.Debug("loaded %d drill metadata records", loaded)
	return loaded
}

// GetCard returns a copy of the card, or nil when the id is unknown.
func (s *Scheduler) GetCard(id string) *models.Card {
	card, ok := s.cards[id]
	if !ok {
		return nil
	}
	out := card.Clone()
	return &out
}

// ResetCard returns a card to its New state, preserving pos_pattern,
// commonality and unit. Returns the reset card, or nil for unknown ids.
func (s *Scheduler) ResetCard(id string) *models.Card {
	card, ok := s.cards[id]
	if !ok {
		s.log.Debug("reset for unknown card: id=%s", id)
		return nil
	}
	s.reset(card)
	out := card.Clone()
	return &out
}

// ResetAllCards resets every card to New. Returns the number reset.
func (s *Scheduler) ResetAllCards() int {
	for _, card := range s.cards {
		s.reset(card)
	}
	s.queue = nil
	s.lastPattern = ""
	s.log.Info("reset all cards: count=%d", len(s.cards))
	return len(s.cards)
}

func (s *Scheduler) reset(card *models.Card) {
	*card = models.Card{
		ID:          card.ID,
		Due:         s.now(),
		PosPattern:  card.PosPattern,
		Commonality: card.Commonality,
		Unit:        card.Unit,
	}
}

// GetStats summarizes the card set and the current session.
func (s *Scheduler) GetStats() models.Stats {
	now := s.now()
	stats := models.Stats{
		TotalCards: len(s.cards),
		Session:    s.session,
		Cards:      make([]models.CardStat, 0, len(s.cards)),
	}

	var staSum, difSum float64
	scored := 0
	for _, c := range s.cards {
		switch c.State {
		case models.StateNew:
			stats.NewCards++
		case models.StateLearning:
			stats.LearningCards++
		case models.StateReview:
			stats.ReviewCards++
		case models.StateRelearning:
			stats.RelearningCards++
		}
		if c.Graduated {
			stats.GraduatedCards++
		}
		if s.isEligible(c, now) {
			stats.DueNow++
		}
		if c.Stability > 0 {
			staSum += c.Stability
			difSum += c.Difficulty
			scored++
		}
		stats.Cards = append(stats.Cards, models.CardStat{
			ID:                 c.ID,
			State:              c.State,
			Due:                c.Due,
			Stability:          c.Stability,
			Difficulty:         c.Difficulty,
			Reps:               c.Reps,
			Lapses:             c.Lapses,
			PosPattern:         c.PosPattern,
			Commonality:        c.Commonality,
			Unit:               c.Unit,
			Graduated:          c.Graduated,
			ConsecutiveCorrect: c.ConsecutiveCorrect,
		})
	}
	if scored > 0 {
		stats.AvgStability = staSum / float64(scored)
		stats.AvgDifficulty = difSum / float64(scored)
	}
	sort.Slice(stats.Cards, func(i, j int) bool { return stats.Cards[i].ID < stats.Cards[j].ID })
	return stats
}

// snapshot is the persisted card-set envelope.
type snapshot struct {
	Version int                     `json:"version"`
	SavedAt time.Time               `json:"saved_at"`
	Cards   map[string]*models.Card `json:"cards"`
}

// Snapshot serializes the card set for the persistence collaborator.
func (s *Scheduler) Snapshot() ([]byte, error) {
	return json.Marshal(snapshot{
		Version: snapshotVersion,
		SavedAt: s.now(),
		Cards:   s.cards,
	})
}

// RestoreSnapshot replaces the card set with a previously saved snapshot.
// The session queue and pattern memory reset; drill metadata is unaffected.
func (s *Scheduler) RestoreSnapshot(blob []byte) error {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version > snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	cards := make(map[string]*models.Card, len(snap.Cards))
	for id, c := range snap.Cards {
		if c == nil || id == "" {
			continue
		}
		// The map key is authoritative for identity.
		c.ID = id
		cards[id] = c
	}
	s.cards = cards
	s.queue = nil
	s.lastPattern = ""
	s.log.Info("restored snapshot: cards=%d saved_at=%s", len(cards), snap.SavedAt.Format(time.RFC3339))
	return nil
}

// CardCount returns the number of cards the scheduler owns.
func (s *Scheduler) CardCount() int {
	return len(s.cards)
}
