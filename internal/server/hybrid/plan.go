// Package hybrid coordinates one logical write across the relational store
// and the document store. Relational operations run in a single transaction;
// document operations run after it commits, with the relational results.
// A document failure cannot roll the committed transaction back, so it is
// reported as a PartialFailureError unless compensation is enabled.
package hybrid

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/dbx"
)

// Results maps operation names to the values they returned.
type Results map[string]any

// RelationalOp runs inside the transaction and sees the results of the
// relational operations registered before it.
type RelationalOp func(ctx context.Context, tx dbx.DBTX, results Results) (any, error)

// DocumentOp runs after commit with every relational result.
type DocumentOp func(ctx context.Context, relational Results) (any, error)

// CompensateOp undoes a committed relational operation. It runs in a new
// transaction.
type CompensateOp func(ctx context.Context, tx dbx.DBTX, relational Results) error

var ErrDuplicateOperation = errors.New("duplicate operation name")

type relationalStep struct {
	name string
	op   RelationalOp
}

type documentStep struct {
	name string
	op   DocumentOp
}

// Plan is an ordered list of named operations. Registration order is
// execution order. Builder errors are kept and reported by Execute.
type Plan struct {
	relational []relationalStep
	document   []documentStep
	compensate map[string]CompensateOp
	err        error
}

func NewPlan() *Plan {
	return &Plan{compensate: make(map[string]CompensateOp)}
}

func (p *Plan) hasRelational(name string) bool {
	for _, s := range p.relational {
		if s.name == name {
			return true
		}
	}
	return false
}

func (p *Plan) hasDocument(name string) bool {
	for _, s := range p.document {
		if s.name == name {
			return true
		}
	}
	return false
}

func (p *Plan) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *Plan) Relational(name string, op RelationalOp) *Plan {
	if p.hasRelational(name) {
		p.fail(fmt.Errorf("%w: relational %q", ErrDuplicateOperation, name))
		return p
	}
	p.relational = append(p.relational, relationalStep{name: name, op: op})
	return p
}

func (p *Plan) Document(name string, op DocumentOp) *Plan {
	if p.hasDocument(name) {
		p.fail(fmt.Errorf("%w: document %q", ErrDuplicateOperation, name))
		return p
	}
	p.document = append(p.document, documentStep{name: name, op: op})
	return p
}

// Compensate registers the undo action for the relational operation name.
func (p *Plan) Compensate(name string, fn CompensateOp) *Plan {
	if !p.hasRelational(name) {
		p.fail(fmt.Errorf("compensation for unknown relational operation %q", name))
		return p
	}
	if _, dup := p.compensate[name]; dup {
		p.fail(fmt.Errorf("%w: compensation %q", ErrDuplicateOperation, name))
		return p
	}
	p.compensate[name] = fn
	return p
}

// Err reports the first builder error.
func (p *Plan) Err() error { return p.err }

// Get returns results[name] as T.
func Get[T any](results Results, name string) (T, bool) {
	v, ok := results[name].(T)
	return v, ok
}
