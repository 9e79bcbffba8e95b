package users

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/cryptox"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type recLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recLogger) Debug(context.Context, string, ...any) {}
func (l *recLogger) Info(context.Context, string, ...any)  {}
func (l *recLogger) Error(context.Context, string, ...any) {}
func (l *recLogger) With(...any) logging.Logger            { return l }
func (l *recLogger) Warn(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

var encryptedShape = regexp.MustCompile(`^[0-9a-f]+:[0-9a-f]+$`)

// encryptedArg matches any value in hex(iv):hex(ct) form.
type encryptedArg struct{}

func (encryptedArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && encryptedShape.MatchString(s)
}

func newRepoWithMock(t *testing.T, cipher *cryptox.FieldCipher) (*PostgresRepository, sqlmock.Sqlmock, *recLogger) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := &recLogger{}
	return NewPostgresRepository(db, NewCodec(cipher, log)), mock, log
}

func newCipher(t *testing.T) *cryptox.FieldCipher {
	t.Helper()
	c, err := cryptox.NewFieldCipher(testSecret)
	require.NoError(t, err)
	return c
}

var userCols = []string{"id", "first_name", "last_name", "email", "email_hash", "password_hash", "phone", "birth_date",
	"state_id", "role_id", "sex_id", "country_id", "last_access_at", "email_verified", "phone_verified",
	"encryption_version", "created_at", "updated_at"}

func userRow(id int64, first, last, email string, phone any, version int) []driver.Value {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []driver.Value{id, first, last, email, cryptox.ComputeSearchHash(email), "$2a$hash", phone, nil,
		int64(1), int64(4), nil, nil, nil, false, false, version, now, now}
}

func mustEncrypt(t *testing.T, c *cryptox.FieldCipher, v string) string {
	t.Helper()
	s, err := c.EncryptField(v)
	require.NoError(t, err)
	return s
}

func TestCreate_EncryptsSensitiveFields(t *testing.T) {
	c := newCipher(t)
	repo, mock, log := newRepoWithMock(t, c)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(first_name,.*encryption_version\)\s*VALUES\s*\(\$1,.*\$12\)\s*RETURNING\s+id,`

	mock.ExpectQuery(q).
		WithArgs(encryptedArg{}, encryptedArg{}, encryptedArg{}, cryptox.ComputeSearchHash("ana@x.com"), "$2a$hash",
			nil, nil, models.StateActive, models.RoleCustomer, nil, nil, models.EncryptionAESv1).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			userRow(1, mustEncrypt(t, c, "Ana"), mustEncrypt(t, c, "Lopez"), mustEncrypt(t, c, "ana@x.com"), nil, 1)...))

	got, err := repo.Create(context.Background(), &models.User{
		FirstName: "Ana", LastName: "Lopez", Email: "ana@x.com", PasswordHash: "$2a$hash",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Ana", got.FirstName)
	assert.Equal(t, "Lopez", got.LastName)
	assert.Equal(t, "ana@x.com", got.Email)
	assert.Equal(t, models.EncryptionAESv1, got.EncryptionVersion)
	assert.Zero(t, log.warnCount())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DegradedModeStoresPlaintextAndWarnsOnce(t *testing.T) {
	repo, mock, log := newRepoWithMock(t, nil)

	phone := "555-0101"
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WithArgs("Ana", "Lopez", "ana@x.com", cryptox.ComputeSearchHash("ana@x.com"), "$2a$hash",
			&phone, nil, models.StateActive, models.RoleCustomer, nil, nil, models.EncryptionNone).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(userRow(2, "Ana", "Lopez", "ana@x.com", phone, 0)...))

	got, err := repo.Create(context.Background(), &models.User{
		FirstName: "Ana", LastName: "Lopez", Email: "ana@x.com", Phone: &phone, PasswordHash: "$2a$hash",
	})
	require.NoError(t, err)

	assert.Equal(t, "ana@x.com", got.Email)
	assert.Equal(t, "555-0101", *got.Phone)
	assert.False(t, encryptedShape.MatchString(got.Email))
	assert.Equal(t, 1, log.warnCount(), "one warning per write")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmailIsConflict(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t, newCipher(t))

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_hash_key", Detail: "Key (email_hash)=(x) already exists."})

	_, err := repo.Create(context.Background(), &models.User{FirstName: "A", LastName: "B", Email: "ANA@x.com", PasswordHash: "h"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorConflict)

	var cv *common.ConstraintViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, []string{"email_hash"}, cv.Fields)
}

func TestFindByEmail_UsesCaseInsensitiveHash(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t, nil)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email_hash\s*=\s*\$1\s*$`).
		WithArgs(cryptox.ComputeSearchHash("ana@x.com")).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(userRow(3, "Ana", "Lopez", "ana@x.com", nil, 0)...))

	got, err := repo.FindByEmail(context.Background(), "Ana@X.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t, nil)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByID_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t, nil)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.FindByID(context.Background(), 1)
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestFindByID_DecryptFailureReturnsStoredValue(t *testing.T) {
	c := newCipher(t)
	repo, mock, log := newRepoWithMock(t, c)

	corrupt := "00112233445566778899aabbccddeeff:0011"
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users`).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			userRow(5, mustEncrypt(t, c, "Ana"), mustEncrypt(t, c, "Lopez"), corrupt, nil, 1)...))

	got, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FirstName)
	assert.Equal(t, corrupt, got.Email)
	assert.Equal(t, 1, log.warnCount(), "one warning per failed field")
}

func TestCodec_FailureHookSeesDecryptErrors(t *testing.T) {
	c := newCipher(t)
	codec := NewCodec(c, &recLogger{})

	var got []FieldFailure
	codec.SetFailureHook(func(_ context.Context, f FieldFailure) { got = append(got, f) })

	phone := "bad"
	u := &models.User{
		ID:                12,
		FirstName:         mustEncrypt(t, c, "Ana"),
		LastName:          "not-encrypted",
		Email:             mustEncrypt(t, c, "ana@x.com"),
		Phone:             &phone,
		EncryptionVersion: models.EncryptionAESv1,
	}
	failed := codec.decodeUser(context.Background(), u)

	assert.Equal(t, []string{"last_name", "phone"}, failed)
	require.Len(t, got, 2)
	assert.Equal(t, FieldFailure{Op: "decrypt", UserID: 12, Field: "last_name", Err: got[0].Err}, got[0])
	assert.ErrorIs(t, got[0].Err, cryptox.ErrDecryption)
	assert.Equal(t, "phone", got[1].Field)
	assert.Equal(t, "Ana", u.FirstName)
	assert.Equal(t, "not-encrypted", u.LastName)
}

func TestUpdate_UndecryptableFieldIsNotRewritten(t *testing.T) {
	c := newCipher(t)
	repo, mock, _ := newRepoWithMock(t, c)

	corrupt := "00112233445566778899aabbccddeeff:0011"
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			userRow(5, mustEncrypt(t, c, "Ana"), mustEncrypt(t, c, "Lopez"), corrupt, nil, 1)...))

	first := "Anna"
	_, err := repo.Update(context.Background(), 5, models.UserPatch{FirstName: &first})
	require.ErrorIs(t, err, cryptox.ErrDecryption)
	assert.ErrorContains(t, err, "email")
	require.NoError(t, mock.ExpectationsWereMet(), "no UPDATE may be issued")
}

func TestUpdate_ReplacingUndecryptableFieldSucceeds(t *testing.T) {
	c := newCipher(t)
	repo, mock, _ := newRepoWithMock(t, c)

	corrupt := "00112233445566778899aabbccddeeff:0011"
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			userRow(5, mustEncrypt(t, c, "Ana"), mustEncrypt(t, c, "Lopez"), corrupt, nil, 1)...))
	mock.ExpectQuery(`(?s)^UPDATE\s+users\s+SET\s+first_name\s*=\s*\$1,\s*last_name\s*=\s*\$2,\s*email\s*=\s*\$3,\s*email_hash\s*=\s*\$4,`).
		WithArgs(encryptedArg{}, encryptedArg{}, encryptedArg{}, cryptox.ComputeSearchHash("fixed@x.com"), nil,
			models.EncryptionAESv1, sqlmock.AnyArg(), int64(5)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			userRow(5, mustEncrypt(t, c, "Ana"), mustEncrypt(t, c, "Lopez"), mustEncrypt(t, c, "fixed@x.com"), nil, 1)...))

	email := "fixed@x.com"
	got, err := repo.Update(context.Background(), 5, models.UserPatch{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "fixed@x.com", got.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NameChangeKeepsEmailHash(t *testing.T) {
	c := newCipher(t)
	repo, mock, _ := newRepoWithMock(t, c)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			userRow(9, mustEncrypt(t, c, "Ana"), mustEncrypt(t, c, "Lopez"), mustEncrypt(t, c, "ana@x.com"), nil, 1)...))
	mock.ExpectQuery(`(?s)^UPDATE\s+users\s+SET\s+first_name\s*=\s*\$1,\s*last_name\s*=\s*\$2,\s*email\s*=\s*\$3,\s*phone\s*=\s*\$4,\s*encryption_version\s*=\s*\$5,\s*updated_at\s*=\s*\$6\s+WHERE\s+id\s*=\s*\$7`).
		WithArgs(encryptedArg{}, encryptedArg{}, encryptedArg{}, nil, models.EncryptionAESv1, sqlmock.AnyArg(), int64(9)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			userRow(9, mustEncrypt(t, c, "Anna"), mustEncrypt(t, c, "Lopez"), mustEncrypt(t, c, "ana@x.com"), nil, 1)...))

	first := "Anna"
	got, err := repo.Update(context.Background(), 9, models.UserPatch{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.FirstName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NonSensitiveOnly(t *testing.T) {
	repo, mock, log := newRepoWithMock(t, nil)

	role := models.RoleArtist
	mock.ExpectQuery(`(?s)^UPDATE\s+users\s+SET\s+role_id\s*=\s*\$1,\s*updated_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3\s+RETURNING`).
		WithArgs(role, sqlmock.AnyArg(), int64(7)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(userRow(7, "Ana", "Lopez", "ana@x.com", nil, 0)...))

	_, err := repo.Update(context.Background(), 7, models.UserPatch{RoleID: &role})
	require.NoError(t, err)
	assert.Zero(t, log.warnCount())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_EmailRewritesAllSensitiveColumns(t *testing.T) {
	c := newCipher(t)
	repo, mock, _ := newRepoWithMock(t, c)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(userRow(8, "Ana", "Lopez", "ana@x.com", nil, 0)...))

	mock.ExpectQuery(`(?s)^UPDATE\s+users\s+SET\s+first_name\s*=\s*\$1,\s*last_name\s*=\s*\$2,\s*email\s*=\s*\$3,\s*email_hash\s*=\s*\$4,\s*phone\s*=\s*\$5,\s*encryption_version\s*=\s*\$6,\s*updated_at\s*=\s*\$7\s+WHERE\s+id\s*=\s*\$8`).
		WithArgs(encryptedArg{}, encryptedArg{}, encryptedArg{}, cryptox.ComputeSearchHash("new@x.com"), nil,
			models.EncryptionAESv1, sqlmock.AnyArg(), int64(8)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			userRow(8, mustEncrypt(t, c, "Ana"), mustEncrypt(t, c, "Lopez"), mustEncrypt(t, c, "new@x.com"), nil, 1)...))

	email := "new@x.com"
	got, err := repo.Update(context.Background(), 8, models.UserPatch{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", got.Email)
	assert.Equal(t, "Ana", got.FirstName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t, nil)

	state := models.StateInactive
	mock.ExpectQuery(`(?s)^UPDATE\s+users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), 9, models.UserPatch{StateID: &state})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t, nil)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+users`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindMany_PageBeyondRange(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t, nil)

	mock.ExpectQuery(`(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+users\s+WHERE\s+role_id\s*=\s*\$1`).
		WithArgs(models.RoleCustomer).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+role_id\s*=\s*\$1\s+ORDER\s+BY\s+id\s+LIMIT\s+\$2\s+OFFSET\s+\$3`).
		WithArgs(models.RoleCustomer, 10, 40).
		WillReturnRows(sqlmock.NewRows(userCols))

	page := models.NewPageRequest(5, 10)
	list, total, err := repo.FindMany(context.Background(), models.UserFilter{RoleID: models.RoleCustomer}, page)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, 1, models.NewPagination(page, total).Pages)
}

func TestAdoptLegacy(t *testing.T) {
	c := newCipher(t)
	repo, mock, _ := newRepoWithMock(t, c)

	alreadyEncrypted := mustEncrypt(t, c, "Lopez")

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+first_name\s*=\s*\$1,.*WHERE\s+id\s*=\s*\$8\s+AND\s+encryption_version\s*=\s*0`).
		WithArgs(encryptedArg{}, alreadyEncrypted, encryptedArg{}, cryptox.ComputeSearchHash("ana@x.com"), nil,
			models.EncryptionAESv1, sqlmock.AnyArg(), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AdoptLegacy(context.Background(), &models.User{ID: 11, FirstName: "Ana", LastName: alreadyEncrypted, Email: "ana@x.com"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdoptLegacy_RequiresCipher(t *testing.T) {
	repo, _, _ := newRepoWithMock(t, nil)
	err := repo.AdoptLegacy(context.Background(), &models.User{ID: 1})
	assert.ErrorIs(t, err, ErrNoCipher)
}
