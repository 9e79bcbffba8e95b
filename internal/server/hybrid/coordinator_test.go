package hybrid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type recLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recLogger) Debug(context.Context, string, ...any) {}
func (l *recLogger) Info(context.Context, string, ...any)  {}
func (l *recLogger) With(...any) logging.Logger            { return l }
func (l *recLogger) Warn(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *recLogger) Error(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE albums (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	return db
}

func countAlbums(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM albums`).Scan(&n))
	return n
}

func insertAlbum(title string) RelationalOp {
	return func(ctx context.Context, tx dbx.DBTX, _ Results) (any, error) {
		res, err := tx.ExecContext(ctx, `INSERT INTO albums (title) VALUES (?)`, title)
		if err != nil {
			return nil, dbx.TranslateError(err)
		}
		return res.LastInsertId()
	}
}

func TestExecute_Success(t *testing.T) {
	db := setupDB(t)
	c := New(db, &recLogger{})

	var seenID int64
	plan := NewPlan().
		Relational("album", insertAlbum("Lumen")).
		Document("content", func(ctx context.Context, rel Results) (any, error) {
			seenID, _ = Get[int64](rel, "album")
			return "doc-1", nil
		})

	res, err := c.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(1), seenID)
	assert.Equal(t, "doc-1", res.Document["content"])
	assert.Equal(t, 1, countAlbums(t, db))
}

func TestExecute_RelationalFailureRollsBackAndSkipsDocuments(t *testing.T) {
	db := setupDB(t)
	c := New(db, &recLogger{})
	boom := errors.New("boom")
	docCalled := false

	plan := NewPlan().
		Relational("first", insertAlbum("A")).
		Relational("second", insertAlbum("B")).
		Relational("third", func(context.Context, dbx.DBTX, Results) (any, error) { return nil, boom }).
		Document("doc", func(context.Context, Results) (any, error) {
			docCalled = true
			return nil, nil
		})

	res, err := c.Execute(context.Background(), plan)
	assert.Nil(t, res)
	assert.Same(t, boom, err, "original error is returned unchanged")
	assert.False(t, docCalled)
	assert.Equal(t, 0, countAlbums(t, db))
}

func TestExecute_ConstraintViolationRollsBack(t *testing.T) {
	db := setupDB(t)
	c := New(db, &recLogger{})

	plan := NewPlan().
		Relational("a", insertAlbum("Same")).
		Relational("b", insertAlbum("Same"))

	_, err := c.Execute(context.Background(), plan)
	require.Error(t, err)
	assert.Equal(t, 0, countAlbums(t, db))
}

func TestExecute_Ordering(t *testing.T) {
	db := setupDB(t)
	c := New(db, &recLogger{})

	var order []string
	rel := func(name string) RelationalOp {
		return func(_ context.Context, _ dbx.DBTX, prior Results) (any, error) {
			order = append(order, "rel:"+name)
			return len(prior), nil
		}
	}
	doc := func(name string) DocumentOp {
		return func(_ context.Context, relational Results) (any, error) {
			order = append(order, "doc:"+name)
			return len(relational), nil
		}
	}

	plan := NewPlan().
		Document("d1", doc("d1")).
		Relational("r1", rel("r1")).
		Document("d2", doc("d2")).
		Relational("r2", rel("r2")).
		Relational("r3", rel("r3"))

	res, err := c.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"rel:r1", "rel:r2", "rel:r3", "doc:d1", "doc:d2"}, order)
	assert.Equal(t, Results{"r1": 0, "r2": 1, "r3": 2}, res.Relational)
	assert.Equal(t, 3, res.Document["d1"])
}

func TestExecute_DocumentFailureLeavesRelationalRow(t *testing.T) {
	db := setupDB(t)
	log := &recLogger{}
	var outcomes []Outcome
	c := New(db, log, WithObserver(func(o Outcome) { outcomes = append(outcomes, o) }))
	outage := errors.New("document store unreachable")
	laterCalled := false

	plan := NewPlan().
		Relational("album", insertAlbum("Orphan")).
		Document("content", func(context.Context, Results) (any, error) { return nil, outage }).
		Document("later", func(context.Context, Results) (any, error) {
			laterCalled = true
			return nil, nil
		})

	res, err := c.Execute(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialHybridFailure)
	assert.ErrorIs(t, err, outage)

	var perr *PartialFailureError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "content", perr.Operation)
	assert.False(t, perr.Compensated)

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, int64(1), res.Relational["album"])
	assert.False(t, laterCalled)
	assert.Equal(t, 1, countAlbums(t, db), "committed row persists")
	assert.Len(t, log.errors, 1)
	assert.Equal(t, []Outcome{OutcomePartial}, outcomes)
}

func TestExecute_CompensationUndoesInReverse(t *testing.T) {
	db := setupDB(t)
	log := &recLogger{}
	c := New(db, log, WithCompensation(true))

	var undo []string
	deleteAlbum := func(name string) CompensateOp {
		return func(ctx context.Context, tx dbx.DBTX, rel Results) error {
			undo = append(undo, name)
			id, _ := Get[int64](rel, name)
			_, err := tx.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id)
			return err
		}
	}

	plan := NewPlan().
		Relational("a", insertAlbum("A")).
		Relational("b", insertAlbum("B")).
		Compensate("a", deleteAlbum("a")).
		Compensate("b", deleteAlbum("b")).
		Document("content", func(context.Context, Results) (any, error) { return nil, errors.New("down") })

	_, err := c.Execute(context.Background(), plan)
	var perr *PartialFailureError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Compensated)
	assert.NoError(t, perr.CompensationErr)
	assert.Equal(t, []string{"b", "a"}, undo)
	assert.Equal(t, 0, countAlbums(t, db))
	assert.Empty(t, log.errors)
	assert.Len(t, log.warns, 1)
}

func TestExecute_CompensationDisabledByDefault(t *testing.T) {
	db := setupDB(t)
	c := New(db, &recLogger{})
	called := false

	plan := NewPlan().
		Relational("a", insertAlbum("A")).
		Compensate("a", func(context.Context, dbx.DBTX, Results) error {
			called = true
			return nil
		}).
		Document("content", func(context.Context, Results) (any, error) { return nil, errors.New("down") })

	_, err := c.Execute(context.Background(), plan)
	assert.ErrorIs(t, err, ErrPartialHybridFailure)
	assert.False(t, called)
	assert.Equal(t, 1, countAlbums(t, db))
}

func TestExecute_CompensationFailureReported(t *testing.T) {
	db := setupDB(t)
	log := &recLogger{}
	c := New(db, log, WithCompensation(true))

	plan := NewPlan().
		Relational("a", insertAlbum("A")).
		Compensate("a", func(context.Context, dbx.DBTX, Results) error { return errors.New("locked") }).
		Document("content", func(context.Context, Results) (any, error) { return nil, errors.New("down") })

	_, err := c.Execute(context.Background(), plan)
	var perr *PartialFailureError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Compensated)
	require.Error(t, perr.CompensationErr)
	assert.Contains(t, err.Error(), "compensation failed")
	assert.Equal(t, 1, countAlbums(t, db))
	assert.Len(t, log.errors, 1)
}

func TestPlan_DuplicateNames(t *testing.T) {
	db := setupDB(t)
	c := New(db, &recLogger{})

	plan := NewPlan().
		Relational("x", insertAlbum("A")).
		Relational("x", insertAlbum("B"))

	_, err := c.Execute(context.Background(), plan)
	assert.ErrorIs(t, err, ErrDuplicateOperation)
	assert.Equal(t, 0, countAlbums(t, db), "nothing runs for an invalid plan")

	plan = NewPlan().
		Document("d", nil).
		Document("d", nil)
	assert.ErrorIs(t, plan.Err(), ErrDuplicateOperation)

	plan = NewPlan().Compensate("missing", nil)
	assert.Error(t, plan.Err())
}

func TestExecute_DocumentOnlyPlan(t *testing.T) {
	c := New(nil, &recLogger{})

	res, err := c.Execute(context.Background(), NewPlan().
		Document("stats", func(context.Context, Results) (any, error) { return 1, nil }))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Relational)
}

func TestGet(t *testing.T) {
	r := Results{"n": int64(3), "s": "x"}

	n, ok := Get[int64](r, "n")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = Get[int64](r, "s")
	assert.False(t, ok)
	_, ok = Get[string](r, "missing")
	assert.False(t, ok)
}
