package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
)

type templateRepository struct {
	BaseRepository
}

func NewTemplateRepository(base BaseRepository) repository.TemplateRepository {
	return &templateRepository{base}
}

func (r *templateRepository) GetByCode(ctx context.Context, code string) (*model.NotificationTemplate, error) {
	query := `
		SELECT id, code, name, subject, body, created_at, updated_at
		FROM notification_templates
		WHERE code = $1
	`
	var tmpl model.NotificationTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification template", err)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tmpl, nil
}
