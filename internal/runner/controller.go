package runner

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/report"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// State is the controller's position in a run.
type State string

const (
	StateIdle        State = "idle"
	StateRunningTerm State = "running_term"
	StateTermFailed  State = "term_failed"
	StateDone        State = "done"
)

// Aggregator builds one term's report.
type Aggregator interface {
	Aggregate(ctx context.Context, rc model.RunContext, instruments []string) (model.Report, report.Stats, error)
}

// Sink writes a finished report to path.
type Sink interface {
	Write(ctx context.Context, rep model.Report, path string) error
}

// Archive keeps a copy of every written report.
type Archive interface {
	SaveReport(ctx context.Context, rep model.Report) (int, error)
}

// Publisher receives run events.
type Publisher interface {
	Publish(event model.Event)
}

// Plan describes one run. Terms run in order.
type Plan struct {
	RunID       string
	Instruments []string
	Terms       []model.Term
	Layout      model.Layout
	ProductType int
	Scale       int
	OutputPath  func(model.Term) string
}

// TermResult is the outcome of one term.
type TermResult struct {
	Term       model.Term    `json:"term"`
	OutputPath string        `json:"output_path"`
	State      State         `json:"state"`
	Stats      report.Stats  `json:"stats"`
	Archived   int           `json:"archived"`
	Duration   time.Duration `json:"duration_ns"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
}

// Failed reports whether the term ended in TermFailed.
func (r TermResult) Failed() bool { return r.State == StateTermFailed }

// RunResult is the outcome of a whole run.
type RunResult struct {
	RunID      string       `json:"run_id"`
	Terms      []TermResult `json:"terms"`
	Canceled   bool         `json:"canceled"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Succeeded counts terms whose report reached the sink.
func (r RunResult) Succeeded() int {
	n := 0
	for _, t := range r.Terms {
		if t.State == StateDone {
			n++
		}
	}
	return n
}

// Failed counts terms that ended in TermFailed.
func (r RunResult) Failed() int {
	n := 0
	for _, t := range r.Terms {
		if t.Failed() {
			n++
		}
	}
	return n
}

// WriteSummary prints one line per term with its output path and counts.
func (r RunResult) WriteSummary(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "run %s: %d term(s) written, %d failed\n", r.RunID, r.Succeeded(), r.Failed()); err != nil {
		return err
	}
	for _, t := range r.Terms {
		line := fmt.Sprintf("  %-6s %-12s %s  instruments=%d quoted=%d failed=%d",
			t.Term.Code, t.State, t.OutputPath, t.Stats.Instruments, t.Stats.Quoted, t.Stats.Failed())
		if t.Error != "" {
			line += "  error=" + t.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if r.Canceled {
		_, err := fmt.Fprintln(w, "  run canceled before all terms finished")
		return err
	}
	return nil
}

// Controller runs every term of a plan in sequence. A failing term never stops the next one.
type Controller struct {
	logger    *zap.Logger
	agg       Aggregator
	sink      Sink
	archive   Archive
	publisher Publisher

	mu    sync.RWMutex
	state State
	term  string
}

func NewController(logger *zap.Logger, agg Aggregator, sink Sink) *Controller {
	return &Controller{
		logger: logger,
		agg:    agg,
		sink:   sink,
		state:  StateIdle,
	}
}

// WithArchive enables report archiving after each successful sink write.
func (c *Controller) WithArchive(a Archive) *Controller {
	c.archive = a
	return c
}

// WithPublisher enables run events.
func (c *Controller) WithPublisher(p Publisher) *Controller {
	c.publisher = p
	return c
}

// State returns the current state and, while running, the active term code.
func (c *Controller) State() (State, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.term
}

func (c *Controller) setState(s State, term string) {
	c.mu.Lock()
	c.state, c.term = s, term
	c.mu.Unlock()
}

func (c *Controller) publish(e model.Event) {
	if c.publisher != nil {
		c.publisher.Publish(e)
	}
}

// Run executes the plan. The error is non-nil only when ctx ends the run early;
// per-term failures are reported in the result.
func (c *Controller) Run(ctx context.Context, plan Plan) (RunResult, error) {
	if plan.RunID == "" {
		plan.RunID = uuid.NewString()
	}
	res := RunResult{RunID: plan.RunID, StartedAt: time.Now().UTC()}

	codes := make([]string, len(plan.Terms))
	for i, t := range plan.Terms {
		codes[i] = t.Code
	}
	c.publish(model.RunStarted{RunID: plan.RunID, Terms: codes, Instruments: len(plan.Instruments), Timestamp: res.StartedAt})
	c.logger.Info("runner.run_started",
		zap.String("run_id", plan.RunID),
		zap.Strings("terms", codes),
		zap.Int("instruments", len(plan.Instruments)))

	for _, term := range plan.Terms {
		if ctx.Err() != nil {
			res.Canceled = true
			break
		}
		tr := c.runTerm(ctx, plan, term)
		res.Terms = append(res.Terms, tr)
		if tr.Failed() && ctx.Err() != nil {
			res.Canceled = true
			break
		}
	}

	res.FinishedAt = time.Now().UTC()
	c.setState(StateDone, "")
	c.publish(model.RunCompleted{
		RunID:     plan.RunID,
		Succeeded: res.Succeeded(),
		Failed:    res.Failed(),
		Canceled:  res.Canceled,
		Timestamp: res.FinishedAt,
	})
	c.logger.Info("runner.run_completed",
		zap.String("run_id", plan.RunID),
		zap.Int("succeeded", res.Succeeded()),
		zap.Int("failed", res.Failed()),
		zap.Bool("canceled", res.Canceled),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))

	if res.Canceled {
		return res, ctx.Err()
	}
	return res, nil
}

func (c *Controller) runTerm(ctx context.Context, plan Plan, term model.Term) (tr TermResult) {
	start := time.Now()
	out := ""
	if plan.OutputPath != nil {
		out = plan.OutputPath(term)
	}
	tr = TermResult{Term: term, OutputPath: out}

	c.setState(StateRunningTerm, term.Code)
	c.publish(model.TermStarted{RunID: plan.RunID, Term: term.Code, OutputPath: out, Timestamp: start.UTC()})
	c.logger.Info("runner.term_started",
		zap.String("run_id", plan.RunID),
		zap.String("term", term.Code),
		zap.String("output", out))

	defer func() {
		if r := recover(); r != nil {
			tr.Err = fmt.Errorf("term panicked: %v", r)
		}
		tr.Duration = time.Since(start)
		metrics.TermDuration.WithLabelValues(term.Code).Observe(tr.Duration.Seconds())
		if tr.Err != nil {
			tr.State = StateTermFailed
			tr.Error = tr.Err.Error()
			c.termFailed(plan.RunID, tr)
			return
		}
		tr.State = StateDone
		metrics.IncTerm("completed")
		c.publish(model.TermCompleted{
			RunID:       plan.RunID,
			Term:        term.Code,
			OutputPath:  out,
			Instruments: tr.Stats.Instruments,
			Quoted:      tr.Stats.Quoted,
			Duration:    tr.Duration,
			Timestamp:   time.Now().UTC(),
		})
		c.logger.Info("runner.term_completed",
			zap.String("run_id", plan.RunID),
			zap.String("term", term.Code),
			zap.String("output", out),
			zap.Int("quoted", tr.Stats.Quoted),
			zap.Int("failed", tr.Stats.Failed()),
			zap.Duration("elapsed", tr.Duration))
	}()

	rc := model.RunContext{
		RunID:       plan.RunID,
		Term:        term,
		Layout:      plan.Layout,
		ProductType: plan.ProductType,
		Scale:       plan.Scale,
		OutputPath:  out,
	}

	rep, stats, err := c.agg.Aggregate(ctx, rc, plan.Instruments)
	tr.Stats = stats
	if err != nil {
		tr.Err = fmt.Errorf("aggregate: %w", err)
		return tr
	}

	if err := c.sink.Write(ctx, rep, out); err != nil {
		tr.Err = fmt.Errorf("write report: %w", err)
		return tr
	}

	if c.archive != nil {
		n, err := c.archive.SaveReport(ctx, rep)
		if err != nil {
			c.logger.Warn("runner.archive_failed",
				zap.String("run_id", plan.RunID),
				zap.String("term", term.Code),
				zap.Error(err))
		}
		tr.Archived = n
	}
	return tr
}

func (c *Controller) termFailed(runID string, tr TermResult) {
	c.setState(StateTermFailed, tr.Term.Code)
	metrics.IncTerm("failed")
	c.publish(model.TermFailed{
		RunID:      runID,
		Term:       tr.Term.Code,
		OutputPath: tr.OutputPath,
		Error:      tr.Error,
		Timestamp:  time.Now().UTC(),
	})
	c.logger.Error("runner.term_failed",
		zap.String("run_id", runID),
		zap.String("term", tr.Term.Code),
		zap.String("output", tr.OutputPath),
		zap.Error(tr.Err))
}
