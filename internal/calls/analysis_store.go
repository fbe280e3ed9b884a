package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrAnalysisNotFound is returned when no analysis matches.
var ErrAnalysisNotFound = errors.New("calls: analysis not found")

// AnalysisStore provides CRUD operations for call_analyses.
type AnalysisStore struct {
	db DB
}

// NewAnalysisStore creates a call-analysis store.
func NewAnalysisStore(db DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

const analysisColumns = `id, vapi_call_id, user_id, phone_number, transcript,
	sentiment_analysis, performance_metrics, extracted_insights, call_duration,
	call_status, call_started_at, call_ended_at, follow_up_sent, follow_up_sent_at, created_at`

// Upsert inserts a row keyed on the provider call id. A duplicate call id is
// treated as success: the existing row wins and nothing is overwritten.
func (s *AnalysisStore) Upsert(ctx context.Context, a *Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if len(a.ExtractedInsights) == 0 {
		a.ExtractedInsights = json.RawMessage(`{}`)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO call_analyses (id, vapi_call_id, user_id, phone_number, transcript,
			sentiment_analysis, performance_metrics, extracted_insights, call_duration,
			call_status, call_started_at, call_ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (vapi_call_id) DO NOTHING`,
		a.ID, a.VapiCallID, a.UserID, a.PhoneNumber, a.Transcript,
		a.SentimentAnalysis, a.PerformanceMetrics, a.ExtractedInsights, a.CallDuration,
		a.CallStatus, a.CallStartedAt, a.CallEndedAt,
	)
	if err != nil {
		return fmt.Errorf("calls: upsert analysis: %w", err)
	}
	return nil
}

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	if err := row.Scan(
		&a.ID, &a.VapiCallID, &a.UserID, &a.PhoneNumber, &a.Transcript,
		&a.SentimentAnalysis, &a.PerformanceMetrics, &a.ExtractedInsights, &a.CallDuration,
		&a.CallStatus, &a.CallStartedAt, &a.CallEndedAt, &a.FollowUpSent, &a.FollowUpSentAt, &a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("calls: scan analysis: %w", err)
	}
	return &a, nil
}

// GetByVapiCallID fetches the analysis for a provider call id.
func (s *AnalysisStore) GetByVapiCallID(ctx context.Context, vapiCallID string) (*Analysis, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+analysisColumns+`
		FROM call_analyses
		WHERE vapi_call_id = $1`, vapiCallID)
	return scanAnalysis(row)
}

// LatestForUser returns the most recently created analysis for a user.
// This is the row the completion tracker polls.
func (s *AnalysisStore) LatestForUser(ctx context.Context, userID uuid.UUID) (*Analysis, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+analysisColumns+`
		FROM call_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, userID)
	return scanAnalysis(row)
}

// ListByUser returns a user's call history, newest first.
func (s *AnalysisStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM call_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("calls: list analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(
			&a.ID, &a.VapiCallID, &a.UserID, &a.PhoneNumber, &a.Transcript,
			&a.SentimentAnalysis, &a.PerformanceMetrics, &a.ExtractedInsights, &a.CallDuration,
			&a.CallStatus, &a.CallStartedAt, &a.CallEndedAt, &a.FollowUpSent, &a.FollowUpSentAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("calls: scan analysis row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calls: iterate analyses: %w", err)
	}
	return out, nil
}

// MergeInsights deep-merges the given keys into extracted_insights. Used to
// append processed_transcript once segmentation completes.
func (s *AnalysisStore) MergeInsights(ctx context.Context, vapiCallID string, patch any) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("calls: marshal insights patch: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE call_analyses
		SET extracted_insights = extracted_insights || $2::jsonb
		WHERE vapi_call_id = $1`, vapiCallID, data)
	if err != nil {
		return fmt.Errorf("calls: merge insights: %w", err)
	}
	return nil
}

// SetSentiment stores the sentiment blob for a call.
func (s *AnalysisStore) SetSentiment(ctx context.Context, vapiCallID string, sentiment any) error {
	data, err := json.Marshal(sentiment)
	if err != nil {
		return fmt.Errorf("calls: marshal sentiment: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE call_analyses
		SET sentiment_analysis = $2
		WHERE vapi_call_id = $1`, vapiCallID, data)
	if err != nil {
		return fmt.Errorf("calls: set sentiment: %w", err)
	}
	return nil
}

// SetPerformanceMetrics stores the AI-behavior scoring blob for a call.
func (s *AnalysisStore) SetPerformanceMetrics(ctx context.Context, vapiCallID string, metrics any) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("calls: marshal metrics: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE call_analyses
		SET performance_metrics = $2
		WHERE vapi_call_id = $1`, vapiCallID, data)
	if err != nil {
		return fmt.Errorf("calls: set performance metrics: %w", err)
	}
	return nil
}

// ListMissedForFollowUp returns recently missed calls that have not had a
// follow-up SMS yet.
func (s *AnalysisStore) ListMissedForFollowUp(ctx context.Context, since time.Time, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM call_analyses
		WHERE call_status IN ('no_answer', 'busy', 'failed', 'voicemail')
			AND call_started_at >= $1
			AND follow_up_sent IS NULL
		ORDER BY call_started_at ASC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("calls: list missed for follow-up: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(
			&a.ID, &a.VapiCallID, &a.UserID, &a.PhoneNumber, &a.Transcript,
			&a.SentimentAnalysis, &a.PerformanceMetrics, &a.ExtractedInsights, &a.CallDuration,
			&a.CallStatus, &a.CallStartedAt, &a.CallEndedAt, &a.FollowUpSent, &a.FollowUpSentAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("calls: scan missed call: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calls: iterate missed calls: %w", err)
	}
	return out, nil
}

// MarkFollowUpSent flags a call so it is excluded from future follow-up scans.
// The follow_up_sent IS NULL guard makes the flag first-writer-wins.
func (s *AnalysisStore) MarkFollowUpSent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE call_analyses
		SET follow_up_sent = TRUE, follow_up_sent_at = now()
		WHERE id = $1 AND follow_up_sent IS NULL`, id)
	if err != nil {
		return fmt.Errorf("calls: mark follow-up sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("calls: mark follow-up sent: no unsent analysis with id %s", id)
	}
	return nil
}

// ClearStaleFollowUpFlags resets flags on rows older than the retention
// window. Bounded retention of the flag, not of the call record.
func (s *AnalysisStore) ClearStaleFollowUpFlags(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE call_analyses
		SET follow_up_sent = NULL, follow_up_sent_at = NULL
		WHERE follow_up_sent = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("calls: clear stale follow-up flags: %w", err)
	}
	return tag.RowsAffected(), nil
}

// WeeklySecondsUsed sums call duration for the user since the window start.
// The usage gate converts this to minutes.
func (s *AnalysisStore) WeeklySecondsUsed(ctx context.Context, userID uuid.UUID, windowStart time.Time) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(call_duration), 0)
		FROM call_analyses
		WHERE user_id = $1 AND created_at >= $2`, userID, windowStart).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("calls: weekly seconds used: %w", err)
	}
	return total, nil
}
