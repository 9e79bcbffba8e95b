package dbx

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes mapped onto common.ConstraintKind.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidTextRepr     = "22P02"
)

var (
	pgKeyDetail  = regexp.MustCompile(`Key \(([^)]+)\)`)
	sqliteDetail = regexp.MustCompile(`(UNIQUE|NOT NULL|FOREIGN KEY|CHECK) constraint failed(?:: (.+?))?(?: \(\d+\))?$`)
)

// TranslateError converts driver constraint errors into
// *common.ConstraintViolation. Other errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind, ok := pgKind(pgErr.Code)
		if !ok {
			return err
		}
		return &common.ConstraintViolation{
			Kind:       kind,
			Fields:     pgFields(pgErr),
			Constraint: pgErr.ConstraintName,
			Err:        err,
		}
	}

	// modernc sqlite, used by in-process tests
	if m := sqliteDetail.FindStringSubmatch(err.Error()); m != nil {
		cv := &common.ConstraintViolation{Err: err}
		switch m[1] {
		case "UNIQUE":
			cv.Kind = common.ConstraintUnique
		case "NOT NULL":
			cv.Kind = common.ConstraintNotNull
		case "FOREIGN KEY":
			cv.Kind = common.ConstraintForeignKey
		default:
			cv.Kind = common.ConstraintCheck
		}
		for _, col := range strings.Split(m[2], ",") {
			col = strings.TrimSpace(col)
			if col == "" {
				continue
			}
			if _, name, ok := strings.Cut(col, "."); ok {
				col = name
			}
			cv.Fields = append(cv.Fields, col)
		}
		return cv
	}

	return err
}

func pgKind(code string) (common.ConstraintKind, bool) {
	switch code {
	case pgUniqueViolation:
		return common.ConstraintUnique, true
	case pgForeignKeyViolation:
		return common.ConstraintForeignKey, true
	case pgNotNullViolation:
		return common.ConstraintNotNull, true
	case pgCheckViolation:
		return common.ConstraintCheck, true
	case pgInvalidTextRepr:
		return common.ConstraintEnum, true
	}
	return "", false
}

func pgFields(e *pgconn.PgError) []string {
	if e.ColumnName != "" {
		return []string{e.ColumnName}
	}
	if m := pgKeyDetail.FindStringSubmatch(e.Detail); m != nil {
		var out []string
		for _, f := range strings.Split(m[1], ",") {
			out = append(out, strings.TrimSpace(f))
		}
		return out
	}
	return nil
}
