// Package agent adapts the resolver and executor to the tool calls an LLM
// agent makes. The language model itself sits behind SQLAuthor and
// ChartAuthor.
package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/koustreak/aigis/internal/artifact"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/logger"
	"github.com/koustreak/aigis/internal/resolver"
)

// SQLAuthor turns a question and a schema summary into one SQL statement.
type SQLAuthor interface {
	WriteSQL(ctx context.Context, summary, question string) (string, error)
}

// ChartAuthor turns a question and tabular data into a chart spec.
type ChartAuthor interface {
	Chart(ctx context.Context, question string, data json.RawMessage) (json.RawMessage, error)
}

// Describer produces the schema summary for a reference, "" on failure.
type Describer interface {
	Describe(ctx context.Context, ref resolver.Reference) string
}

// Runner executes SQL and renders the outcome as text.
type Runner interface {
	Run(ctx context.Context, ref resolver.Reference, sqlText string) (string, error)
}

// Answer is what the agent sees after a tool call. Exactly one of Result
// and Error is set.
type Answer struct {
	SQL      string             `json:"sql,omitempty"`
	Result   string             `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
	Artifact *artifact.Artifact `json:"artifact,omitempty"`
}

const noSchema = "database schema is unavailable"

type Tool struct {
	describer Describer
	runner    Runner
	sql       SQLAuthor
	charts    ChartAuthor
	artifacts *artifact.Store
	log       *logger.Logger
}

// Option customises a Tool.
type Option func(*Tool)

func WithChartAuthor(c ChartAuthor) Option {
	return func(t *Tool) { t.charts = c }
}

// WithArtifacts persists results and charts to s.
func WithArtifacts(s *artifact.Store) Option {
	return func(t *Tool) { t.artifacts = s }
}

func WithLogger(l *logger.Logger) Option {
	return func(t *Tool) { t.log = l }
}

func NewTool(d Describer, r Runner, author SQLAuthor, opts ...Option) *Tool {
	t := &Tool{describer: d, runner: r, sql: author, log: logger.Nop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// AskDatabase answers question against the connection ref points at.
// Failures are reported in Answer.Error, never returned.
func (t *Tool) AskDatabase(ctx context.Context, ref resolver.Reference, question string) Answer {
	log := t.log.ForTenant(ref.UserID, firstID(ref))

	summary := t.describer.Describe(ctx, ref)
	if summary == "" {
		return Answer{Error: noSchema}
	}

	sqlText, err := t.sql.WriteSQL(ctx, summary, question)
	if err != nil {
		log.WarnWith("sql author failed", err, nil)
		return Answer{Error: "could not write SQL: " + err.Error()}
	}
	sqlText = strings.TrimSpace(sqlText)

	result, err := t.runner.Run(ctx, ref, sqlText)
	if err != nil {
		return Answer{SQL: sqlText, Error: errs.UserMessage(err)}
	}

	ans := Answer{SQL: sqlText, Result: result}
	if t.artifacts != nil {
		a, err := t.artifacts.Save(ctx, artifact.KindResult, []byte(result), map[string]string{"sql": oneLine(sqlText)})
		if err != nil {
			log.WarnWith("result artifact not saved", err, nil)
		} else {
			ans.Artifact = &a
		}
	}
	return ans
}

// AskAnalyst asks the chart author for a chart over data, which must be
// JSON (usually a previous AskDatabase result).
func (t *Tool) AskAnalyst(ctx context.Context, question string, data string) Answer {
	if t.charts == nil {
		return Answer{Error: "charting is not configured"}
	}
	if !json.Valid([]byte(data)) {
		return Answer{Error: "analyst input is not valid JSON"}
	}

	spec, err := t.charts.Chart(ctx, question, json.RawMessage(data))
	if err != nil {
		t.log.WarnWith("chart author failed", err, nil)
		return Answer{Error: "could not build chart: " + err.Error()}
	}
	if !json.Valid(spec) {
		return Answer{Error: "chart spec is not valid JSON"}
	}

	ans := Answer{Result: string(spec)}
	if t.artifacts != nil {
		a, err := t.artifacts.Save(ctx, artifact.KindChart, spec, nil)
		if err != nil {
			t.log.WarnWith("chart artifact not saved", err, nil)
		} else {
			ans.Artifact = &a
		}
	}
	return ans
}

func firstID(ref resolver.Reference) int64 {
	if ids := ref.IDs(); len(ids) > 0 {
		return ids[0]
	}
	return 0
}

// oneLine flattens SQL for use as object metadata, which cannot hold
// newlines.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
