package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/cryptox"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

const userColumns = `id, first_name, last_name, email, email_hash, password_hash, phone, birth_date,
	state_id, role_id, sex_id, country_id, last_access_at, email_verified, phone_verified,
	encryption_version, created_at, updated_at`

type PostgresRepository struct {
	db    dbx.DBTX
	codec *Codec
}

func NewPostgresRepository(db dbx.DBTX, codec *Codec) *PostgresRepository {
	return &PostgresRepository{db: db, codec: codec}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.EmailHash, &u.PasswordHash, &u.Phone, &u.BirthDate,
		&u.StateID, &u.RoleID, &u.SexID, &u.CountryID, &u.LastAccessAt, &u.EmailVerified, &u.PhoneVerified,
		&u.EncryptionVersion, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	enc, err := r.codec.encodeUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}

	if user.StateID == 0 {
		user.StateID = models.StateActive
	}
	if user.RoleID == 0 {
		user.RoleID = models.RoleCustomer
	}

	query :=
		`INSERT INTO users (first_name, last_name, email, email_hash, password_hash, phone, birth_date,
			state_id, role_id, sex_id, country_id, encryption_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRowContext(ctx, query,
		enc.FirstName, enc.LastName, enc.Email, cryptox.ComputeSearchHash(user.Email), user.PasswordHash,
		enc.Phone, user.BirthDate, user.StateID, user.RoleID, user.SexID, user.CountryID, enc.Version))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}

	r.codec.decodeUser(ctx, created)
	return created, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	u, _, err := r.load(ctx, where, arg)
	return u, err
}

// load reads one row and also returns the sensitive columns that did not
// decrypt.
func (r *PostgresRepository) load(ctx context.Context, where string, arg any) (*models.User, []string, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("db error: %w", err)
	}

	failed := r.codec.decodeUser(ctx, u)
	return u, failed, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email_hash = $1", cryptox.ComputeSearchHash(email))
}

// Update applies patch. When a sensitive column changes, the current row is
// read and every sensitive column is rewritten so a row never mixes
// encryption versions. A stored column that does not decrypt and is not
// replaced by the patch aborts the update with cryptox.ErrDecryption, since
// rewriting it would encrypt the ciphertext itself.
func (r *PostgresRepository) Update(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	var set dbx.Assignments

	if patch.FirstName != nil || patch.LastName != nil || patch.Email != nil || patch.Phone != nil {
		current, failed, err := r.load(ctx, "id = $1", id)
		if err != nil {
			return nil, err
		}
		if current.EncryptionVersion != models.EncryptionNone && !r.codec.Encrypting() {
			return nil, ErrNoCipher
		}
		if kept := notPatched(failed, patch); len(kept) > 0 {
			return nil, fmt.Errorf("user %d: cannot rewrite %s: %w", id, strings.Join(kept, ", "), cryptox.ErrDecryption)
		}
		merged := *current
		applySensitive(&merged, patch)

		enc, err := r.codec.encodeUser(ctx, &merged)
		if err != nil {
			return nil, fmt.Errorf("encode user: %w", err)
		}
		set.Set("first_name", enc.FirstName)
		set.Set("last_name", enc.LastName)
		set.Set("email", enc.Email)
		if patch.Email != nil {
			set.Set("email_hash", cryptox.ComputeSearchHash(merged.Email))
		}
		set.Set("phone", enc.Phone)
		set.Set("encryption_version", enc.Version)
	}

	dbx.SetIf(&set, "password_hash", patch.PasswordHash)
	dbx.SetIf(&set, "birth_date", patch.BirthDate)
	dbx.SetIf(&set, "state_id", patch.StateID)
	dbx.SetIf(&set, "role_id", patch.RoleID)
	dbx.SetIf(&set, "sex_id", patch.SexID)
	dbx.SetIf(&set, "country_id", patch.CountryID)
	dbx.SetIf(&set, "last_access_at", patch.LastAccessAt)
	dbx.SetIf(&set, "email_verified", patch.EmailVerified)
	dbx.SetIf(&set, "phone_verified", patch.PhoneVerified)

	if set.Empty() {
		return r.FindByID(ctx, id)
	}
	set.Set("updated_at", time.Now().UTC())

	assignments, args := set.SQL()
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`, assignments, len(args)+1, userColumns)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, append(args, id)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}

	r.codec.decodeUser(ctx, u)
	return u, nil
}

// notPatched returns the columns in failed that patch leaves unchanged.
func notPatched(failed []string, p models.UserPatch) []string {
	patched := map[string]bool{
		"first_name": p.FirstName != nil,
		"last_name":  p.LastName != nil,
		"email":      p.Email != nil,
		"phone":      p.Phone != nil,
	}
	var kept []string
	for _, f := range failed {
		if !patched[f] {
			kept = append(kept, f)
		}
	}
	return kept
}

func applySensitive(u *models.User, p models.UserPatch) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = p.Phone
	}
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) FindMany(ctx context.Context, filter models.UserFilter, page models.PageRequest) ([]models.User, int64, error) {
	var w dbx.Where
	if filter.StateID != 0 {
		w.Add("state_id = $%d", filter.StateID)
	}
	if filter.RoleID != 0 {
		w.Add("role_id = $%d", filter.RoleID)
	}
	if filter.CountryID != 0 {
		w.Add("country_id = $%d", filter.CountryID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	limit, args := w.Page(page.Limit, page.Offset())
	users, err := r.query(ctx, `SELECT `+userColumns+` FROM users`+w.SQL()+` ORDER BY id`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *PostgresRepository) FindLegacy(ctx context.Context, limit int) ([]models.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE encryption_version = 0 ORDER BY id LIMIT $1`, limit)
}

func (r *PostgresRepository) AdoptLegacy(ctx context.Context, user *models.User) error {
	enc, hash, err := r.codec.adoptLegacy(ctx, user)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET first_name = $1, last_name = $2, email = $3, email_hash = $4, phone = $5,
			encryption_version = $6, updated_at = $7
		 WHERE id = $8 AND encryption_version = 0`,
		enc.FirstName, enc.LastName, enc.Email, hash, enc.Phone, enc.Version, time.Now().UTC(), user.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.TranslateError(err))
	}
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		r.codec.decodeUser(ctx, u)
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
