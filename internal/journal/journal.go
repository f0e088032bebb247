// Package journal records every processed review in the application
// database, so history survives restarts independently of snapshots.
package journal

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/tsuji/bunkei/internal/db"
	"github.com/tsuji/bunkei/internal/logger"
	"github.com/tsuji/bunkei/internal/models"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// Entry is one logged review.
type Entry struct {
	ID              string       `json:"id"`
	CardID          string       `json:"card_id"`
	Grade           models.Grade `json:"grade"`
	State           models.State `json:"state"`
	IntervalMinutes int64        `json:"interval_minutes"`
	ErrorType       string       `json:"error_type,omitempty"`
	PosPattern      string       `json:"pos_pattern,omitempty"`
	Unit            string       `json:"unit,omitempty"`
	ReviewedAt      time.Time    `json:"reviewed_at"`
}

// Filter narrows history queries. Zero values mean no constraint.
type Filter struct {
	CardID  string
	Pattern string
	Unit    string
	Grade   models.Grade
	Since   time.Time
	Limit   int
}

// Summary aggregates review outcomes for a filter.
type Summary struct {
	TotalReviews int            `json:"total_reviews"`
	Correct      int            `json:"correct"`
	Incorrect    int            `json:"incorrect"`
	Accuracy     float64        `json:"accuracy"`
	ByGrade      map[string]int `json:"by_grade"`
	ByDay        map[string]int `json:"by_day"`
}

// Journal stores and queries the review log.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	Summarize(ctx context.Context, f Filter) (Summary, error)
}

type sqliteJournal struct {
	db *db.DB
}

// New creates a Journal backed by the application database.
func New(database *db.DB) Journal {
	return &sqliteJournal{db: database}
}

func (j *sqliteJournal) Append(ctx context.Context, e Entry) error {
	log := logger.FromContext(ctx).WithPrefix("journal")
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO review_log (id, card_id, grade, state, interval_minutes, error_type, pos_pattern, unit, reviewed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, e.ID, e.CardID, int(e.Grade), e.State.String(), e.IntervalMinutes, e.ErrorType, e.PosPattern, e.Unit, e.ReviewedAt.UTC())
	if err != nil {
		log.Error("failed to append review entry: %v", err)
		return err
	}
	log.Debug("review logged: card=%s grade=%s", e.CardID, e.Grade)
	return nil
}

func (j *sqliteJournal) List(ctx context.Context, f Filter) ([]Entry, error) {
	log := logger.FromContext(ctx).WithPrefix("journal")
	log.Debug("listing reviews: card=%s pattern=%s unit=%s grade=%d", f.CardID, f.Pattern, f.Unit, int(f.Grade))

	query := sqlBuilder.Select(
		"id", "card_id", "grade", "state", "interval_minutes",
		"error_type", "pos_pattern", "unit", "reviewed_at",
	).From("review_log")
	query = applyFilter(query, f)
	query = query.OrderBy("reviewed_at DESC")

	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	query = query.Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to list reviews: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			grade    int
			stateStr string
		)
		if err := rows.Scan(&e.ID, &e.CardID, &grade, &stateStr, &e.IntervalMinutes,
			&e.ErrorType, &e.PosPattern, &e.Unit, &e.ReviewedAt); err != nil {
			log.Error("failed to scan review row: %v", err)
			return nil, err
		}
		e.Grade = models.Grade(grade)
		if err := e.State.UnmarshalText([]byte(stateStr)); err != nil {
			log.Error("failed to parse state %q: %v", stateStr, err)
			return nil, err
		}
		out = append(out, e)
	}
	log.Debug("found %d review entries", len(out))
	return out, rows.Err()
}

func (j *sqliteJournal) Summarize(ctx context.Context, f Filter) (Summary, error) {
	log := logger.FromContext(ctx).WithPrefix("journal")

	query := sqlBuilder.Select("grade", "COUNT(*)").From("review_log")
	query = applyFilter(query, f).GroupBy("grade")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build summary query: %v", err)
		return Summary{}, err
	}

	rows, err := j.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to summarize reviews: %v", err)
		return Summary{}, err
	}
	defer rows.Close()

	summary := Summary{ByGrade: make(map[string]int), ByDay: make(map[string]int)}
	for rows.Next() {
		var grade, count int
		if err := rows.Scan(&grade, &count); err != nil {
			log.Error("failed to scan summary row: %v", err)
			return Summary{}, err
		}
		g := models.Grade(grade)
		summary.ByGrade[g.String()] = count
		summary.TotalReviews += count
		if g.IsCorrect() {
			summary.Correct += count
		} else {
			summary.Incorrect += count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}
	if summary.TotalReviews > 0 {
		summary.Accuracy = float64(summary.Correct) / float64(summary.TotalReviews)
	}

	if err := j.summarizeDays(ctx, f, summary.ByDay); err != nil {
		log.Error("failed to summarize review days: %v", err)
		return Summary{}, err
	}
	return summary, nil
}

// summarizeDays fills byDay with per-calendar-day review counts, keyed by
// the UTC date of the review.
func (j *sqliteJournal) summarizeDays(ctx context.Context, f Filter, byDay map[string]int) error {
	query := sqlBuilder.Select("date(reviewed_at)", "COUNT(*)").From("review_log")
	query = applyFilter(query, f).GroupBy("date(reviewed_at)")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	rows, err := j.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return err
		}
		byDay[day] = count
	}
	return rows.Err()
}

func applyFilter(q squirrel.SelectBuilder, f Filter) squirrel.SelectBuilder {
	if f.CardID != "" {
		q = q.Where(squirrel.Eq{"card_id": f.CardID})
	}
	if f.Pattern != "" {
		q = q.Where(squirrel.Eq{"pos_pattern": f.Pattern})
	}
	if f.Unit != "" {
		q = q.Where(squirrel.Eq{"unit": f.Unit})
	}
	if f.Grade != 0 {
		q = q.Where(squirrel.Eq{"grade": int(f.Grade)})
	}
	if !f.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"reviewed_at": f.Since.UTC()})
	}
	return q
}
