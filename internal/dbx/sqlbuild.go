package dbx

import (
	"fmt"
	"strings"
)

// Assignments accumulates "col = $n" pairs for a patch-style UPDATE.
type Assignments struct {
	cols []string
	args []any
}

// Set always assigns v to col.
func (a *Assignments) Set(col string, v any) {
	a.cols = append(a.cols, col)
	a.args = append(a.args, v)
}

// SetIf assigns *v to col when v is non-nil.
func SetIf[T any](a *Assignments, col string, v *T) {
	if v != nil {
		a.Set(col, *v)
	}
}

func (a *Assignments) Empty() bool { return len(a.cols) == 0 }

// SQL renders the SET list with placeholders starting at $1 and returns the
// argument slice. The next free placeholder index is len(args)+1.
func (a *Assignments) SQL() (string, []any) {
	parts := make([]string, len(a.cols))
	for i, c := range a.cols {
		parts[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	return strings.Join(parts, ", "), a.args
}

// Where accumulates AND-ed conditions for a filtered query.
type Where struct {
	conds []string
	args  []any
}

// Add appends a condition. expr must contain exactly one %d verb, which is
// replaced by the placeholder index of arg, e.g. w.Add("artist_id = $%d", id).
func (w *Where) Add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(expr, len(w.args)))
}

// AddRaw appends a condition that takes no argument.
func (w *Where) AddRaw(expr string) {
	w.conds = append(w.conds, expr)
}

// SQL renders " WHERE a AND b" or "" when there are no conditions.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *Where) Args() []any { return w.args }

// Page renders " LIMIT $n OFFSET $m" after the current arguments and
// returns the full argument list.
func (w *Where) Page(limit, offset int) (string, []any) {
	n := len(w.args)
	args := append(append([]any{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}
