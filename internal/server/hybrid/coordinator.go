package hybrid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
)

var ErrPartialHybridFailure = errors.New("hybrid operation partially failed")

// PartialFailureError reports a document operation failure after the
// relational transaction committed.
type PartialFailureError struct {
	Operation  string
	Relational Results
	// Document holds the document results completed before the failure.
	Document        Results
	Compensated     bool
	CompensationErr error
	Err             error
}

func (e *PartialFailureError) Error() string {
	msg := fmt.Sprintf("hybrid operation partially failed at %q: %v", e.Operation, e.Err)
	if e.CompensationErr != nil {
		msg += fmt.Sprintf(" (compensation failed: %v)", e.CompensationErr)
	}
	return msg
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func (e *PartialFailureError) Is(target error) bool { return target == ErrPartialHybridFailure }

// Result is the combined output of a plan.
type Result struct {
	Success    bool
	Relational Results
	Document   Results
}

// Outcome classifies one Execute call.
type Outcome string

const (
	OutcomeCommitted   Outcome = "committed"
	OutcomeRolledBack  Outcome = "rolled_back"
	OutcomePartial     Outcome = "partial_failure"
	OutcomeCompensated Outcome = "compensated"
)

type Coordinator struct {
	db         *sql.DB
	logger     logging.Logger
	compensate bool
	txOpts     *sql.TxOptions
	observe    func(Outcome)
}

type Option func(*Coordinator)

// WithCompensation makes a document failure run the plan's compensations.
func WithCompensation(on bool) Option {
	return func(c *Coordinator) { c.compensate = on }
}

func WithTxOptions(opts *sql.TxOptions) Option {
	return func(c *Coordinator) { c.txOpts = opts }
}

// WithObserver registers a callback invoked once per Execute.
func WithObserver(fn func(Outcome)) Option {
	return func(c *Coordinator) { c.observe = fn }
}

func New(db *sql.DB, logger logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{db: db, logger: logger, observe: func(Outcome) {}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Execute runs the plan. A relational failure rolls the transaction back,
// skips every document operation and is returned unchanged. A document
// failure stops the remaining document operations and returns the partial
// Result with a *PartialFailureError.
func (c *Coordinator) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	if err := plan.Err(); err != nil {
		return nil, err
	}

	relational := Results{}
	if len(plan.relational) > 0 {
		err := dbx.WithTx(ctx, c.db, c.txOpts, func(ctx context.Context, tx dbx.DBTX) error {
			for _, step := range plan.relational {
				v, err := step.op(ctx, tx, relational)
				if err != nil {
					c.logger.Debug(ctx, "relational operation failed, rolling back", "operation", step.name, "error", err)
					return err
				}
				relational[step.name] = v
			}
			return nil
		})
		if err != nil {
			c.observe(OutcomeRolledBack)
			return nil, err
		}
	}

	document := Results{}
	for _, step := range plan.document {
		v, err := step.op(ctx, relational)
		if err != nil {
			return &Result{Relational: relational, Document: document}, c.partialFailure(ctx, plan, step.name, relational, document, err)
		}
		document[step.name] = v
	}

	c.observe(OutcomeCommitted)
	return &Result{Success: true, Relational: relational, Document: document}, nil
}

func (c *Coordinator) partialFailure(ctx context.Context, plan *Plan, op string, relational, document Results, cause error) error {
	perr := &PartialFailureError{Operation: op, Relational: relational, Document: document, Err: cause}

	if c.compensate && len(plan.compensate) > 0 {
		perr.CompensationErr = c.runCompensations(ctx, plan, relational)
		perr.Compensated = perr.CompensationErr == nil
	}

	if perr.Compensated {
		c.observe(OutcomeCompensated)
		c.logger.Warn(ctx, "document operation failed, relational changes compensated",
			"operation", op, "error", cause)
		return perr
	}

	c.observe(OutcomePartial)
	c.logger.Error(ctx, "document operation failed after relational commit, relational changes persist",
		"operation", op, "relational_results", len(relational), "error", cause,
		"compensation_error", perr.CompensationErr)
	return perr
}

// runCompensations undoes relational operations in reverse registration
// order inside one new transaction.
func (c *Coordinator) runCompensations(ctx context.Context, plan *Plan, relational Results) error {
	// the request may already be canceled; the undo still has to run
	ctx = context.WithoutCancel(ctx)
	return dbx.WithTx(ctx, c.db, c.txOpts, func(ctx context.Context, tx dbx.DBTX) error {
		for i := len(plan.relational) - 1; i >= 0; i-- {
			name := plan.relational[i].name
			fn, ok := plan.compensate[name]
			if !ok {
				continue
			}
			if err := fn(ctx, tx, relational); err != nil {
				return fmt.Errorf("compensate %q: %w", name, err)
			}
		}
		return nil
	})
}
