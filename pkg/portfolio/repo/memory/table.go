package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Table implements portfolio.Table using in-memory storage. Rows are kept as
// column maps and decoded into E on the way out.
type Table[E any] struct {
	mu     sync.RWMutex
	schema portfolio.Schema
	rows   map[int64]map[string]any
	nextID int64
	now    func() time.Time
}

// NewTable creates an empty table for schema
func NewTable[E any](schema portfolio.Schema) *Table[E] {
	return &Table[E]{
		schema: schema,
		rows:   make(map[int64]map[string]any),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (t *Table[E]) Name() string {
	return t.schema.Table
}

func (t *Table[E]) Select(ctx context.Context, q portfolio.Query) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, portfolio.QueryError(t.Name(), "select", portfolio.KindUnavailable, err)
	}
	for _, f := range q.Filters {
		if !t.schema.HasColumn(f.Column) {
			return nil, t.unknownColumn("select", f.Column)
		}
	}
	if q.OrderBy != "" && !t.schema.HasColumn(q.OrderBy) {
		return nil, t.unknownColumn("select", q.OrderBy)
	}

	t.mu.RLock()
	var matched []map[string]any
	for _, row := range t.rows {
		if matches(row, q.Filters) {
			matched = append(matched, copyRow(row))
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compare(matched[i][q.OrderBy], matched[j][q.OrderBy])
			if !q.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return matched[i]["id"].(int64) < matched[j]["id"].(int64)
	})

	result := make([]E, 0, len(matched))
	for _, row := range matched {
		e, err := t.decode("select", row)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (t *Table[E]) Insert(ctx context.Context, values map[string]any) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, portfolio.QueryError(t.Name(), "insert", portfolio.KindUnavailable, err)
	}
	row := make(map[string]any, len(t.schema.Columns)+2)
	for _, col := range t.schema.Columns {
		row[col] = nil
	}
	for col, v := range t.schema.Defaults {
		row[col] = cloneValue(v)
	}
	for col, v := range values {
		if col == "id" || col == "created_at" || !t.schema.HasColumn(col) {
			return zero, t.unknownColumn("insert", col)
		}
		row[col] = cloneValue(v)
	}
	if err := t.checkRequired("insert", row); err != nil {
		return zero, err
	}

	t.mu.Lock()
	row["id"] = t.nextID
	t.nextID++
	if t.schema.Timestamped {
		row["created_at"] = t.now()
	}
	t.rows[row["id"].(int64)] = row
	stored := copyRow(row)
	t.mu.Unlock()

	return t.decode("insert", stored)
}

func (t *Table[E]) Update(ctx context.Context, id int64, values map[string]any) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, portfolio.QueryError(t.Name(), "update", portfolio.KindUnavailable, err)
	}
	for col := range values {
		if col == "id" || col == "created_at" || !t.schema.HasColumn(col) {
			return zero, t.unknownColumn("update", col)
		}
	}

	t.mu.Lock()
	current, exists := t.rows[id]
	if !exists {
		t.mu.Unlock()
		return zero, portfolio.QueryError(t.Name(), "update", portfolio.KindNoRows,
			fmt.Errorf("%w: id %d", portfolio.ErrNoRows, id))
	}
	next := copyRow(current)
	for col, v := range values {
		next[col] = cloneValue(v)
	}
	if err := t.checkRequired("update", next); err != nil {
		t.mu.Unlock()
		return zero, err
	}
	t.rows[id] = next
	stored := copyRow(next)
	t.mu.Unlock()

	return t.decode("update", stored)
}

func (t *Table[E]) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return portfolio.QueryError(t.Name(), "delete", portfolio.KindUnavailable, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, id)
	return nil
}

// Len returns the number of stored rows.
func (t *Table[E]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func (t *Table[E]) checkRequired(op string, row map[string]any) error {
	var missing []string
	for _, col := range t.schema.Required {
		if row[col] == nil {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &portfolio.RemoteQueryError{
		Table:   t.Name(),
		Op:      op,
		Kind:    portfolio.KindInvalid,
		Message: fmt.Sprintf("null value in column %s violates not-null constraint", strings.Join(missing, ", ")),
	}
}

func (t *Table[E]) unknownColumn(op, col string) error {
	return &portfolio.RemoteQueryError{
		Table:   t.Name(),
		Op:      op,
		Kind:    portfolio.KindInvalid,
		Message: fmt.Sprintf("column %q does not exist", col),
	}
}

func (t *Table[E]) decode(op string, row map[string]any) (E, error) {
	var e E
	data, err := json.Marshal(row)
	if err != nil {
		return e, portfolio.QueryError(t.Name(), op, portfolio.KindUnknown, err)
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, portfolio.QueryError(t.Name(), op, portfolio.KindUnknown, err)
	}
	return e, nil
}

func copyRow(row map[string]any) map[string]any {
	out := maps.Clone(row)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []int64:
		return slices.Clone(x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *portfolio.Date:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}
