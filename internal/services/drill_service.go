package services

import (
	"context"
	"sync"
	"time"

	"github.com/tsuji/bunkei/internal/errors"
	"github.com/tsuji/bunkei/internal/journal"
	"github.com/tsuji/bunkei/internal/logger"
	"github.com/tsuji/bunkei/internal/models"
	"github.com/tsuji/bunkei/internal/persist"
	"github.com/tsuji/bunkei/internal/scheduler"
	"github.com/tsuji/bunkei/internal/storage"
)

// DrillService owns the scheduler and serializes every operation on it,
// journals processed reviews, and hands snapshots to the persister. The
// scheduler itself is lock-free, so this is the single place concurrency
// is handled.
type DrillService interface {
	InitializeCards(ctx context.Context, items []models.DrillItem) (int, error)
	LoadDrillMeta(ctx context.Context, metas []models.DrillMeta) (int, error)
	ProcessReview(ctx context.Context, cardID string, grade models.Grade, errInfo *models.ErrorInfo) (*scheduler.ReviewResult, error)
	BuildQueue(ctx context.Context, max int) ([]models.Card, error)
	NextCard(ctx context.Context) (*models.Card, error)
	DueCards(ctx context.Context) ([]models.Card, error)
	GetCard(ctx context.Context, id string) (*models.Card, error)
	Stats(ctx context.Context) (models.Stats, error)
	ResetCard(ctx context.Context, id string) (*models.Card, error)
	ResetAllCards(ctx context.Context) (int, error)
	History(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
	HistorySummary(ctx context.Context, f journal.Filter) (journal.Summary, error)
	Restore(ctx context.Context) error
}

type drillService struct {
	mu          sync.Mutex
	scheduler   *scheduler.Scheduler
	persister   *persist.Persister
	journal     journal.Journal
	store       storage.Store
	snapshotKey string
}

// NewDrillService creates a DrillService. The store and key are used only
// by Restore; ongoing writes go through the persister.
func NewDrillService(sched *scheduler.Scheduler, persister *persist.Persister, jrnl journal.Journal, store storage.Store, snapshotKey string) DrillService {
	return &drillService{
		scheduler:   sched,
		persister:   persister,
		journal:     jrnl,
		store:       store,
		snapshotKey: snapshotKey,
	}
}

func (s *drillService) InitializeCards(ctx context.Context, items []models.DrillItem) (int, error) {
	log := logger.FromContext(ctx)
	log.Debug("initializing cards: items=%d", len(items))

	s.mu.Lock()
	created := s.scheduler.InitializeCards(items)
	if created > 0 {
		blob, err := s.scheduler.Snapshot()
		s.enqueueSnapshot(ctx, blob, err)
	}
	s.mu.Unlock()

	log.Info("cards initialized: created=%d", created)
	return created, nil
}

func (s *drillService) LoadDrillMeta(ctx context.Context, metas []models.DrillMeta) (int, error) {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	loaded := s.scheduler.LoadDrillMeta(metas)
	s.mu.Unlock()

	log.Info("drill metadata loaded: records=%d", loaded)
	return loaded, nil
}

func (s *drillService) ProcessReview(ctx context.Context, cardID string, grade models.Grade, errInfo *models.ErrorInfo) (*scheduler.ReviewResult, error) {
	log := logger.FromContext(ctx)
	log.Debug("processing review: card_id=%s grade=%d", cardID, int(grade))

	if cardID == "" {
		return nil, errors.NewValidationError("card_id", "cannot be empty")
	}
	if !grade.IsValid() {
		return nil, errors.NewValidationError("grade", "must be between 1 (Again) and 4 (Easy)")
	}

	s.mu.Lock()
	res := s.scheduler.ProcessReview(cardID, grade, errInfo)
	if res != nil {
		blob, snapErr := s.scheduler.Snapshot()
		s.enqueueSnapshot(ctx, blob, snapErr)
	}
	s.mu.Unlock()

	if res == nil {
		return nil, errors.NewNotFoundError("card", cardID)
	}

	reviewedAt := time.Now()
	if res.Card.LastReview != nil {
		reviewedAt = *res.Card.LastReview
	}
	entry := journal.Entry{
		CardID:          cardID,
		Grade:           grade,
		State:           res.Card.State,
		IntervalMinutes: int64(res.Interval / time.Minute),
		PosPattern:      res.Card.PosPattern,
		Unit:            res.Card.Unit,
		ReviewedAt:      reviewedAt,
	}
	if errInfo != nil {
		entry.ErrorType = errInfo.Type
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		log.Warn("failed to record review history: %v", err)
		// The review itself already succeeded.
	}

	log.Debug("review processed: card_id=%s state=%s next_due=%s", cardID, res.Card.State, res.NextDue.Format(time.RFC3339))
	return res, nil
}

func (s *drillService) BuildQueue(ctx context.Context, max int) ([]models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.BuildSessionQueue(max), nil
}

func (s *drillService) NextCard(ctx context.Context) (*models.Card, error) {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	card := s.scheduler.GetNextCard()
	s.mu.Unlock()

	if card == nil {
		log.Debug("no cards due")
		return nil, nil
	}
	return card, nil
}

func (s *drillService) DueCards(ctx context.Context) ([]models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.DueCards(), nil
}

func (s *drillService) GetCard(ctx context.Context, id string) (*models.Card, error) {
	s.mu.Lock()
	card := s.scheduler.GetCard(id)
	s.mu.Unlock()

	if card == nil {
		return nil, errors.NewNotFoundError("card", id)
	}
	return card, nil
}

func (s *drillService) Stats(ctx context.Context) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.GetStats(), nil
}

func (s *drillService) ResetCard(ctx context.Context, id string) (*models.Card, error) {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	card := s.scheduler.ResetCard(id)
	if card != nil {
		blob, err := s.scheduler.Snapshot()
		s.enqueueSnapshot(ctx, blob, err)
	}
	s.mu.Unlock()

	if card == nil {
		return nil, errors.NewNotFoundError("card", id)
	}
	log.Info("card reset: id=%s", id)
	return card, nil
}

func (s *drillService) ResetAllCards(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	count := s.scheduler.ResetAllCards()
	blob, err := s.scheduler.Snapshot()
	s.enqueueSnapshot(ctx, blob, err)
	s.mu.Unlock()

	log.Info("all cards reset: count=%d", count)
	return count, nil
}

func (s *drillService) History(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	entries, err := s.journal.List(ctx, f)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return entries, nil
}

func (s *drillService) HistorySummary(ctx context.Context, f journal.Filter) (journal.Summary, error) {
	summary, err := s.journal.Summarize(ctx, f)
	if err != nil {
		return journal.Summary{}, errors.NewInternalError(err)
	}
	return summary, nil
}

// Restore loads the latest snapshot from the store, if any. A missing
// snapshot is a fresh start, not an error.
func (s *drillService) Restore(ctx context.Context) error {
	log := logger.FromContext(ctx)

	blob, err := s.store.Load(ctx, s.snapshotKey)
	if err != nil {
		return errors.NewUnavailableError("snapshot store", err)
	}
	if blob == nil {
		log.Info("no snapshot found, starting fresh")
		return nil
	}

	s.mu.Lock()
	err = s.scheduler.RestoreSnapshot(blob)
	s.mu.Unlock()

	if err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

// enqueueSnapshot hands the serialized card set to the persister without
// blocking. Callers must hold s.mu: the persister keeps only the newest
// blob it was handed, so enqueue order must match snapshot order. A
// serialization failure only costs durability, never the operation.
func (s *drillService) enqueueSnapshot(ctx context.Context, blob []byte, err error) {
	if err != nil {
		logger.FromContext(ctx).Warn("failed to serialize snapshot: %v", err)
		return
	}
	s.persister.Enqueue(blob)
}
