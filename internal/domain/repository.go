package domain

import (
	"context"
	"time"
)

// Analysis is an archived analysis row. The archive is observational: it is
// written after the fact for history and usage reporting and is never
// consulted by the admission layer.
type Analysis struct {
	ID         string
	UserID     string
	ImageHash  string
	Mode       Mode
	Language   string
	Text       string
	Confidence Confidence
	ModelUsed  string
	Cached     bool
	Country    string
	CreatedAt  time.Time
}

// AnalysisRepository persists archived analyses.
type AnalysisRepository interface {
	Save(ctx context.Context, analysis *Analysis) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Analysis, error)
	GetByID(ctx context.Context, id string) (*Analysis, error)
}
