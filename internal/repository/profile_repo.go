package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ekaai-backend/internal/models"
)

// DB is the part of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProfileRepo keys profiles on the identity provider's user id as text. Token
// sign-in ids are not uuids.
type ProfileRepo struct {
	db DB
}

func NewProfileRepo(db DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

const profileColumns = `id, full_name, email, preferred_language, current_grade, subjects,
	is_preparing_for_exam, exam_name, learning_goals, daily_study_time,
	preferred_explanation_style, learning_challenge, starting_topic, youtube_link,
	created_at, updated_at`

// GetByID returns pgx.ErrNoRows when the user has no profile yet.
func (r *ProfileRepo) GetByID(ctx context.Context, userID string) (*models.ProfileRow, error) {
	if userID == "" {
		return nil, pgx.ErrNoRows
	}

	var row models.ProfileRow
	err := r.db.QueryRow(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", userID).Scan(
		&row.ID, &row.FullName, &row.Email, &row.PreferredLanguage, &row.CurrentGrade, &row.Subjects,
		&row.IsPreparingForExam, &row.ExamName, &row.LearningGoals, &row.DailyStudyTime,
		&row.PreferredExplanationStyle, &row.LearningChallenge, &row.StartingTopic, &row.YoutubeLink,
		&row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes only the fields set on u, plus updated_at.
func (r *ProfileRepo) Upsert(ctx context.Context, userID string, u *models.ProfileUpdate) error {
	if userID == "" {
		return fmt.Errorf("upsert profile: empty user id")
	}

	cols, vals := u.Columns()
	insertCols := append([]string{"id"}, cols...)
	placeholders := make([]string, len(insertCols))
	for i := range insertCols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		updates = append(updates, c+" = EXCLUDED."+c)
	}
	updates = append(updates, "updated_at = NOW()")

	query := fmt.Sprintf(`
		INSERT INTO profiles (%s, updated_at)
		VALUES (%s, NOW())
		ON CONFLICT (id) DO UPDATE SET %s`,
		strings.Join(insertCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	args := append([]any{userID}, vals...)
	_, err := r.db.Exec(ctx, query, args...)
	return err
}

// Delete returns pgx.ErrNoRows when there was no row to remove.
func (r *ProfileRepo) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return pgx.ErrNoRows
	}
	tag, err := r.db.Exec(ctx, "DELETE FROM profiles WHERE id = $1", userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
