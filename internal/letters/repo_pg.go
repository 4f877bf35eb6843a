package letters

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const letterColumns = `id, user_id, template_id, content_latex, letter_date, file_title, position_title, company_name, company_address, hiring_manager, source_key, created_at, updated_at`

// Create inserts a new letter.
func (r *PGRepo) Create(ctx context.Context, letter Letter) (Letter, error) {
	const query = `
INSERT INTO letters (
    id,
    user_id,
    template_id,
    content_latex,
    letter_date,
    file_title,
    position_title,
    company_name,
    company_address,
    hiring_manager,
    source_key
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at, updated_at`

	if letter.ID == "" {
		letter.ID = uuid.NewString()
	}
	info := letter.JobInfo
	err := r.DB.QueryRowContext(
		ctx,
		query,
		letter.ID,
		letter.UserID,
		nullString(letter.TemplateID),
		letter.ContentLatex,
		nullString(letter.Date),
		nullString(info.FileTitle),
		nullString(info.PositionTitle),
		nullString(info.CompanyName),
		nullString(info.CompanyAddress),
		nullString(info.HiringManager),
		nullString(letter.SourceKey),
	).Scan(&letter.CreatedAt, &letter.UpdatedAt)
	if err != nil {
		return Letter{}, err
	}
	return letter, nil
}

// GetByID returns a letter by id for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (Letter, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Letter{}, ErrNotFound
	}
	query := `SELECT ` + letterColumns + `
FROM letters
WHERE id = $1 AND user_id = $2`
	letter, err := scanLetter(r.DB.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Letter{}, ErrNotFound
	}
	return letter, err
}

// ListByUser returns a user's letters, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Letter, error) {
	query := `SELECT ` + letterColumns + `
FROM letters
WHERE user_id = $1
ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Letter{}
	for rows.Next() {
		letter, err := scanLetter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, letter)
	}
	return out, rows.Err()
}

// Update merges the non-nil patch fields and bumps updated_at.
func (r *PGRepo) Update(ctx context.Context, userID, id string, patch Patch) (Letter, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Letter{}, ErrNotFound
	}
	query := `
UPDATE letters SET
    content_latex = COALESCE($3, content_latex),
    template_id = COALESCE($4, template_id),
    letter_date = COALESCE($5, letter_date),
    file_title = COALESCE($6, file_title),
    position_title = COALESCE($7, position_title),
    company_name = COALESCE($8, company_name),
    company_address = COALESCE($9, company_address),
    hiring_manager = COALESCE($10, hiring_manager),
    updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + letterColumns

	letter, err := scanLetter(r.DB.QueryRowContext(
		ctx,
		query,
		id,
		userID,
		nullString(patch.ContentLatex),
		nullString(patch.TemplateID),
		nullString(patch.Date),
		nullString(patch.FileTitle),
		nullString(patch.PositionTitle),
		nullString(patch.CompanyName),
		nullString(patch.CompanyAddress),
		nullString(patch.HiringManager),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Letter{}, ErrNotFound
	}
	return letter, err
}

// Delete removes a letter.
func (r *PGRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM letters WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLetter(row rowScanner) (Letter, error) {
	var letter Letter
	var templateID, date, sourceKey sql.NullString
	var fileTitle, position, company, address, manager sql.NullString
	err := row.Scan(
		&letter.ID,
		&letter.UserID,
		&templateID,
		&letter.ContentLatex,
		&date,
		&fileTitle,
		&position,
		&company,
		&address,
		&manager,
		&sourceKey,
		&letter.CreatedAt,
		&letter.UpdatedAt,
	)
	if err != nil {
		return Letter{}, err
	}
	letter.TemplateID = stringPtr(templateID)
	letter.Date = stringPtr(date)
	letter.SourceKey = stringPtr(sourceKey)
	letter.JobInfo = JobInfo{
		FileTitle:      stringPtr(fileTitle),
		PositionTitle:  stringPtr(position),
		CompanyName:    stringPtr(company),
		CompanyAddress: stringPtr(address),
		HiringManager:  stringPtr(manager),
	}
	return letter, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

var _ Repo = (*PGRepo)(nil)
