// Package query runs agent-authored SQL against a resolved tenant engine.
// Statements are executed as written; results are capped and every failure
// comes back as a value.
package query

import (
	"context"
	"strings"
	"unicode"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/logger"
	"github.com/koustreak/aigis/internal/metrics"
	"github.com/koustreak/aigis/internal/resolver"
)

// MaxRows caps the rows returned by one statement.
const MaxRows = 50

// Resolver is the slice of resolver.Resolver the executor needs.
type Resolver interface {
	Resolve(ctx context.Context, ref resolver.Reference) (*resolver.Resolution, error)
}

type Executor struct {
	resolver Resolver
	log      *logger.Logger
	rec      metrics.Recorder
}

// Option customises an Executor.
type Option func(*Executor)

func WithLogger(l *logger.Logger) Option {
	return func(x *Executor) { x.log = l }
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(x *Executor) { x.rec = rec }
}

func NewExecutor(r Resolver, opts ...Option) *Executor {
	x := &Executor{resolver: r, log: logger.Nop(), rec: metrics.Nop()}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Execute resolves ref and runs sqlText on its engine. Exactly one of the
// results is non-nil. Errors are *errs.Error values carrying the driver
// message; nothing is retried.
func (x *Executor) Execute(ctx context.Context, ref resolver.Reference, sqlText string) (out *Outcome, err error) {
	done := metrics.TimeOp(x.rec, metrics.OpExecute)
	defer func() { done(err == nil) }()

	if strings.TrimSpace(sqlText) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "empty SQL statement")
	}

	res, err := x.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	connID := ref.IDs()[0]
	out, err = x.run(ctx, res.Engine, sqlText, map[string]any{
		"user_id":       ref.UserID,
		"connection_id": connID,
	})
	if err != nil {
		x.log.ForTenant(ref.UserID, connID).WarnWith("query failed", err, nil)
		return nil, err
	}
	return out, nil
}

// Run is Execute with the outcome rendered as text.
func (x *Executor) Run(ctx context.Context, ref resolver.Reference, sqlText string) (string, error) {
	out, err := x.Execute(ctx, ref, sqlText)
	if err != nil {
		return "", err
	}
	return out.Text()
}

func (x *Executor) run(ctx context.Context, e *database.Engine, sqlText string, fields map[string]any) (*Outcome, error) {
	conn, err := e.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	e.Trace(sqlText, fields)

	if returnsRows(sqlText) {
		rows, err := conn.QueryContext(ctx, sqlText)
		if err != nil {
			return nil, database.MapError(err, "query failed")
		}
		cols, data, err := database.ScanRows(rows, MaxRows)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			// misclassified statement: it ran, but the driver reports no count
			return &Outcome{}, nil
		}
		if len(data) == 0 {
			cols = []string{}
		}
		return &Outcome{Returned: true, Columns: cols, Rows: data}, nil
	}

	result, err := conn.ExecContext(ctx, sqlText)
	if err != nil {
		return nil, database.MapError(err, "statement failed")
	}
	out := &Outcome{}
	if n, err := result.RowsAffected(); err == nil && n >= 0 {
		out.RowCount = &n
	}
	return out, nil
}

var rowKeywords = map[string]bool{
	"SELECT":   true,
	"VALUES":   true,
	"TABLE":    true,
	"SHOW":     true,
	"EXPLAIN":  true,
	"PRAGMA":   true,
	"DESCRIBE": true,
	"DESC":     true,
}

// mainKeywords can start the statement that follows a WITH clause.
var mainKeywords = map[string]bool{
	"SELECT": true,
	"VALUES": true,
	"TABLE":  true,
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"MERGE":  true,
}

// returnsRows guesses from its keywords whether the statement produces a
// result set. For WITH the statement after the CTE list decides, and DML
// counts as a query only with a top-level RETURNING clause.
func returnsRows(sqlText string) bool {
	words := topLevelWords(sqlText)
	if len(words) == 0 {
		return false
	}
	kw := words[0]
	if kw == "WITH" {
		kw = ""
		for _, w := range words[1:] {
			if mainKeywords[w] {
				kw = w
				break
			}
		}
	}
	if rowKeywords[kw] {
		return true
	}
	for _, w := range words {
		if w == "RETURNING" {
			return true
		}
	}
	return false
}

// topLevelWords returns the bare words of sqlText outside parentheses, in
// upper case. String literals, quoted identifiers and comments are skipped.
// A statement wrapped entirely in parentheses is read from inside them.
func topLevelWords(sqlText string) []string {
	s := strings.TrimLeftFunc(sqlText, unicode.IsSpace)
	for strings.HasPrefix(s, "(") || strings.HasPrefix(s, "--") || strings.HasPrefix(s, "/*") {
		switch {
		case s[0] == '(':
			s = s[1:]
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return nil
			}
			s = s[i+1:]
		default:
			i := strings.Index(s, "*/")
			if i < 0 {
				return nil
			}
			s = s[i+2:]
		}
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
	}

	var words []string
	depth := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i+1, c)
		case c == '[':
			i = skipQuoted(s, i+1, ']')
		case strings.HasPrefix(s[i:], "--"):
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				return words
			}
			i += j + 1
		case strings.HasPrefix(s[i:], "/*"):
			j := strings.Index(s[i+2:], "*/")
			if j < 0 {
				return words
			}
			i += j + 4
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			if depth == 0 {
				words = append(words, strings.ToUpper(s[i:j]))
			}
			i = j
		default:
			i++
		}
	}
	return words
}

// skipQuoted returns the index just past the quote closing at or after i.
// A doubled closing quote is an escaped one.
func skipQuoted(s string, i int, closing byte) int {
	for i < len(s) {
		if s[i] == closing {
			if i+1 < len(s) && s[i+1] == closing {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
