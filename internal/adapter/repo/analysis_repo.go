package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"visor/internal/domain"
	"visor/internal/infra"
	"visor/internal/sqlinline"
)

const defaultHistoryLimit = 20

// AnalysisRepositoryPG implements domain.AnalysisRepository using PostgreSQL.
type AnalysisRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAnalysisRepository constructs a new analysis archive over the given
// executor.
func NewAnalysisRepository(sql infra.SQLExecutor) *AnalysisRepositoryPG {
	return &AnalysisRepositoryPG{sql: sql}
}

// Save archives an analysis. An empty ID is assigned here so callers stay
// ignorant of identifier format.
func (r *AnalysisRepositoryPG) Save(ctx context.Context, analysis *domain.Analysis) error {
	if analysis.ID == "" {
		analysis.ID = uuid.NewString()
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertAnalysis,
		analysis.ID,
		analysis.UserID,
		analysis.ImageHash,
		string(analysis.Mode),
		analysis.Language,
		analysis.Text,
		string(analysis.Confidence),
		analysis.ModelUsed,
		analysis.Cached,
		analysis.Country,
	)
	if err := row.Scan(&analysis.CreatedAt); err != nil {
		return fmt.Errorf("repo: save analysis: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent analyses, newest first.
func (r *AnalysisRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListAnalysesByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []domain.Analysis
	for rows.Next() {
		var a domain.Analysis
		if err := scanAnalysis(rows, &a); err != nil {
			return nil, fmt.Errorf("repo: scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list analyses: %w", err)
	}
	return analyses, nil
}

// GetByID fetches a single archived analysis. Missing rows surface as
// domain.ErrNotFound.
func (r *AnalysisRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Analysis, error) {
	var a domain.Analysis
	if err := scanAnalysis(r.sql.QueryRow(ctx, sqlinline.QGetAnalysisByID, id), &a); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get analysis: %w", err)
	}
	return &a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner, a *domain.Analysis) error {
	var mode, confidence string
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ImageHash,
		&mode,
		&a.Language,
		&a.Text,
		&confidence,
		&a.ModelUsed,
		&a.Cached,
		&a.Country,
		&a.CreatedAt,
	); err != nil {
		return err
	}
	a.Mode = domain.Mode(mode)
	a.Confidence = domain.Confidence(confidence)
	return nil
}
