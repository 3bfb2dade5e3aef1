package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/inkwell/internal/stats"
	"github.com/roach88/inkwell/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Identifiers can't be parameterized, so only these are interpolated.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Events for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", ev.Seq, ev.Topic, ev.Payload)
		}
	}

	return buf.String()
}

// assertTraceContains checks that some event on the topic carries the
// expected payload fields (subset match).
func assertTraceContains(events []TraceEvent, assertion Assertion) error {
	for _, ev := range events {
		if ev.Topic == assertion.Topic && matchArgs(ev.Payload, assertion.Payload) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s with payload %v", assertion.Topic, assertion.Payload),
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertTraceOrder checks that the first event of each topic appears in
// the specified order. Other events may come in between.
func assertTraceOrder(events []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, ev := range events {
		if _, seen := positions[ev.Topic]; !seen {
			positions[ev.Topic] = i + 1 // 1-indexed for readability
		}
	}

	for _, topic := range assertion.Topics {
		if positions[topic] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all topics present: %v", assertion.Topics),
				Actual:   fmt.Sprintf("missing topic: %s", topic),
				Trace:    events,
			}
		}
	}

	for i := 1; i < len(assertion.Topics); i++ {
		prev := assertion.Topics[i-1]
		curr := assertion.Topics[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("topics in order: %v", assertion.Topics),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: events,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the topic was published exactly Count times.
func assertTraceCount(events []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range events {
		if ev.Topic == assertion.Topic {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events on %s", assertion.Count, assertion.Topic),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    events,
		}
	}

	return nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it holds the expected column values (subset match).
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.DB().QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Several matches make the assertion ambiguous.
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expected := assertion.Expect[key]
		actual, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actual, actual),
			}
		}
	}

	return nil
}

// assertStats checks the statistics report for Book (0 for all books)
// against the expected fields, by their JSON names.
func assertStats(ctx context.Context, engine *stats.Engine, assertion Assertion) error {
	var bookID *int64
	if assertion.Book != 0 {
		id := assertion.Book
		bookID = &id
	}

	engine.Clear()
	report, err := engine.Calculate(ctx, bookID)
	if err != nil {
		return fmt.Errorf("calculate stats: %w", err)
	}
	actual, err := normalize(report)
	if err != nil {
		return err
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expected := assertion.Expect[key]
		if !valuesEqual(actual[key], expected) {
			return &AssertionError{
				Type:     AssertStats,
				Expected: fmt.Sprintf("%s = %v", key, expected),
				Actual:   fmt.Sprintf("%s = %v", key, actual[key]),
			}
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML scalar to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, float64:
		return val
	case bool:
		// Flags are stored as 0/1.
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected YAML value with a value scanned
// from SQLite, which reports integers as int64 and flags as 0/1.
func stateValuesEqual(expected, actual any) bool {
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		s, ok := actual.(string)
		return ok && exp == s
	case int:
		n, ok := toInt64(actual)
		return ok && int64(exp) == n
	case int64:
		n, ok := toInt64(actual)
		return ok && exp == n
	case bool:
		if b, ok := actual.(bool); ok {
			return exp == b
		}
		n, ok := toInt64(actual)
		return ok && exp == (n != 0)
	}

	return reflect.DeepEqual(expected, actual)
}

// matchArgs checks if actual contains all expected keys (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values after converting both to their JSON
// form, so YAML ints match JSON numbers.
func valuesEqual(actual, expected any) bool {
	a, errA := normalizeValue(actual)
	e, errE := normalizeValue(expected)
	if errA != nil || errE != nil {
		return false
	}
	return reflect.DeepEqual(a, e)
}

func normalizeValue(v any) (any, error) {
	var out any
	if err := remarshal(v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store
	Stats *stats.Engine
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for final_state and stats.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	events := result.Events()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(events, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(events, assertion)
		case AssertTraceCount:
			err = assertTraceCount(events, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertStats:
			if actx == nil || actx.Stats == nil {
				err = fmt.Errorf("assertion[%d]: stats requires a statistics engine", i)
			} else {
				err = assertStats(actx.Ctx, actx.Stats, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
