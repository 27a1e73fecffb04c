package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// GetByUserID returns the clinic the user operates. A user linked to several
// clinics gets the oldest link.
func (r *clinicRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.SessionClinic, error) {
	query := `
		SELECT c.id, c.name
		FROM users_to_clinics uc
		JOIN clinics c ON c.id = uc.clinic_id
		WHERE uc.user_id = $1
		ORDER BY uc.created_at ASC
		LIMIT 1
	`
	var clinic model.SessionClinic
	if err := r.db.GetContext(ctx, &clinic, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get clinic for user: %w", notFound(err))
	}
	return &clinic, nil
}
