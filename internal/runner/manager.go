package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/store"
)

var (
	// ErrRunActive is returned when a run is requested while another is in progress.
	ErrRunActive = errors.New("a run is already in progress")
	// ErrInvalidRun wraps plan construction failures such as a missing input file.
	ErrInvalidRun = errors.New("invalid run request")
)

const statusTTL = 7 * 24 * time.Hour

// RunRequest optionally overrides the input file and restricts the terms of one run.
type RunRequest struct {
	Input string   `json:"input,omitempty"`
	Terms []string `json:"terms,omitempty"`
}

// PlanBuilder turns a request into an executable plan.
type PlanBuilder func(ctx context.Context, req RunRequest) (Plan, error)

// StatusStore persists run status snapshots.
type StatusStore interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
}

// RunStatus is the externally visible view of one run.
type RunStatus struct {
	RunID       string     `json:"run_id"`
	Status      string     `json:"status"` // running, completed, canceled
	Input       string     `json:"input,omitempty"`
	Terms       []string   `json:"terms"`
	State       State      `json:"state"`
	CurrentTerm string     `json:"current_term,omitempty"`
	Result      *RunResult `json:"result,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Manager starts runs in the background, at most one at a time.
type Manager struct {
	ctx     context.Context
	logger  *zap.Logger
	ctrl    *Controller
	build   PlanBuilder
	store   StatusStore
	timeout time.Duration

	mu     sync.Mutex
	active string
	runs   map[string]*RunStatus
	wg     sync.WaitGroup
}

// NewManager creates a Manager whose runs live under ctx.
func NewManager(ctx context.Context, logger *zap.Logger, ctrl *Controller, build PlanBuilder) *Manager {
	return &Manager{
		ctx:    ctx,
		logger: logger,
		ctrl:   ctrl,
		build:  build,
		runs:   make(map[string]*RunStatus),
	}
}

// WithStore persists run status under store.RunKey.
func (m *Manager) WithStore(s StatusStore) *Manager {
	m.store = s
	return m
}

// WithTimeout bounds each run.
func (m *Manager) WithTimeout(d time.Duration) *Manager {
	m.timeout = d
	return m
}

// Start validates req, builds its plan and launches the run.
func (m *Manager) Start(ctx context.Context, req RunRequest) (RunStatus, error) {
	m.mu.Lock()
	if m.active != "" {
		id := m.active
		m.mu.Unlock()
		return RunStatus{}, fmt.Errorf("%w: %s", ErrRunActive, id)
	}
	// reserve the slot while the plan is built
	m.active = "pending"
	m.mu.Unlock()

	plan, err := m.build(ctx, req)
	if err != nil {
		m.release("")
		return RunStatus{}, fmt.Errorf("%w: %w", ErrInvalidRun, err)
	}
	if plan.RunID == "" {
		plan.RunID = uuid.NewString()
	}

	codes := make([]string, len(plan.Terms))
	for i, t := range plan.Terms {
		codes[i] = t.Code
	}
	st := &RunStatus{
		RunID:     plan.RunID,
		Status:    "running",
		Input:     req.Input,
		Terms:     codes,
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.active = plan.RunID
	m.runs[plan.RunID] = st
	snapshot := *st
	m.mu.Unlock()
	m.persist(snapshot)

	m.logger.Info("runner.run_accepted",
		zap.String("run_id", plan.RunID),
		zap.Strings("terms", codes),
		zap.Int("instruments", len(plan.Instruments)))

	m.wg.Add(1)
	go m.execute(plan)
	return snapshot, nil
}

func (m *Manager) execute(plan Plan) {
	defer m.wg.Done()

	ctx := m.ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	res, err := m.ctrl.Run(ctx, plan)
	if err != nil {
		m.logger.Warn("runner.run_interrupted", zap.String("run_id", plan.RunID), zap.Error(err))
	}

	m.mu.Lock()
	st := m.runs[plan.RunID]
	st.Result = &res
	st.State = StateDone
	st.Status = "completed"
	if res.Canceled {
		st.Status = "canceled"
	}
	finished := res.FinishedAt
	st.FinishedAt = &finished
	snapshot := *st
	m.mu.Unlock()

	m.persist(snapshot)
	m.release(plan.RunID)
}

func (m *Manager) release(runID string) {
	m.mu.Lock()
	if runID == "" || m.active == runID {
		m.active = ""
	}
	m.mu.Unlock()
}

func (m *Manager) persist(st RunStatus) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.store.SetJSON(ctx, store.RunKey(st.RunID), st, statusTTL); err != nil {
		m.logger.Warn("runner.status_persist_failed", zap.String("run_id", st.RunID), zap.Error(err))
	}
}

// Get returns the status of a run started by this process, falling back to the store.
func (m *Manager) Get(ctx context.Context, runID string) (RunStatus, bool, error) {
	m.mu.Lock()
	st, ok := m.runs[runID]
	var snapshot RunStatus
	if ok {
		snapshot = *st
	}
	active := m.active == runID
	m.mu.Unlock()

	if ok {
		if active {
			snapshot.State, snapshot.CurrentTerm = m.ctrl.State()
		}
		return snapshot, true, nil
	}

	if m.store == nil {
		return RunStatus{}, false, nil
	}
	var stored RunStatus
	found, err := m.store.GetJSON(ctx, store.RunKey(runID), &stored)
	if err != nil || !found {
		return RunStatus{}, false, err
	}
	return stored, true, nil
}

// Active returns the id of the run in progress, if any.
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == "" || m.active == "pending" {
		return "", false
	}
	return m.active, true
}

// Wait blocks until every started run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
