package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// ErrSuspended unwinds a handler when the run parks on a sleep or a retry.
// Handlers must propagate it unchanged.
var ErrSuspended = errors.New("workflow run suspended")

const (
	sleepStepName = "sleep"

	retryBaseDelay = 30 * time.Second
	retryMaxDelay  = time.Hour

	// runClaimLease bounds how long a crashed poller keeps a claimed run
	// parked before it wakes again.
	runClaimLease = 5 * time.Minute
)

// HandlerFunc is the body of a workflow. It is re-executed from the top on
// every wake-up, so all side effects must go through Execution.RunStep.
type HandlerFunc func(ctx context.Context, ex *Execution) error

// EngineParams carries Engine dependencies.
type EngineParams struct {
	Store           Store
	Logger          *logger.Logger
	MaxStepAttempts int
	Now             func() time.Time
}

// Engine replays durable workflow runs against registered handlers.
type Engine struct {
	store           Store
	logg            *logger.Logger
	maxStepAttempts int
	now             func() time.Time
	handlers        map[string]HandlerFunc
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, errors.New("store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.MaxStepAttempts <= 0 {
		params.MaxStepAttempts = 5
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Engine{
		store:           params.Store,
		logg:            params.Logger,
		maxStepAttempts: params.MaxStepAttempts,
		now:             params.Now,
		handlers:        make(map[string]HandlerFunc),
	}, nil
}

// Register binds a handler to a workflow name.
func (e *Engine) Register(name string, handler HandlerFunc) {
	e.handlers[name] = handler
}

// Trigger creates a run that becomes due immediately. Triggering the same
// (workflow, subject) twice is a no-op.
func (e *Engine) Trigger(ctx context.Context, name, subjectKey string, payload any) error {
	if _, ok := e.handlers[name]; !ok {
		return fmt.Errorf("workflow %q not registered", name)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	wakeAt := e.now()
	run := &models.WorkflowRun{
		WorkflowName: name,
		SubjectKey:   subjectKey,
		Payload:      data,
		Status:       enums.WorkflowRunActive,
		WakeAt:       &wakeAt,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		if errors.Is(err, ErrRunExists) {
			return nil
		}
		return err
	}
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"workflow":    name,
		"subject_key": subjectKey,
		"run_id":      run.ID.String(),
	})
	e.logg.Info(logCtx, "workflow run triggered")
	return nil
}

// Cancel stops the active run for the given workflow/subject.
func (e *Engine) Cancel(ctx context.Context, name, subjectKey string) error {
	return e.store.CancelBySubject(ctx, name, subjectKey)
}

// ProcessDue replays every run whose wake time has passed. Each run is
// claimed before its handler executes, so concurrent pollers over the same
// store never replay the same run. Run-level errors are logged and do not
// abort the batch.
func (e *Engine) ProcessDue(ctx context.Context, limit int) (int, error) {
	now := e.now()
	runs, err := e.store.DueRuns(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for i := range runs {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		run := &runs[i]
		runCtx := e.logg.WithWorkflowRun(ctx, run.ID.String())
		claimedUntil := now.Add(runClaimLease)
		claimed, err := e.store.ClaimRun(ctx, run.ID, now, claimedUntil)
		if err != nil {
			e.logg.Error(runCtx, "workflow run claim failed", err)
			continue
		}
		if !claimed {
			continue
		}
		run.WakeAt = &claimedUntil
		if err := e.processRun(ctx, run); err != nil {
			e.logg.Error(runCtx, "workflow run processing failed", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (e *Engine) processRun(ctx context.Context, run *models.WorkflowRun) error {
	if run.Status != enums.WorkflowRunActive {
		return nil
	}
	handler, ok := e.handlers[run.WorkflowName]
	if !ok {
		msg := fmt.Sprintf("workflow %q not registered", run.WorkflowName)
		return e.store.SetStatus(ctx, run.ID, enums.WorkflowRunFailed, &msg)
	}

	ex := &Execution{
		engine:      e,
		run:         run,
		now:         e.now(),
		occurrences: make(map[string]int),
	}

	err := handler(ctx, ex)
	switch {
	case errors.Is(err, ErrSuspended):
		return nil
	case err != nil:
		return e.retryRun(ctx, run, err)
	default:
		return e.store.SetStatus(ctx, run.ID, enums.WorkflowRunCompleted, nil)
	}
}

// retryRun backs the run off after an unexpected handler error. After too
// many consecutive failures the run is marked failed.
func (e *Engine) retryRun(ctx context.Context, run *models.WorkflowRun, cause error) error {
	attempts := run.Attempts + 1
	if attempts >= e.maxStepAttempts {
		msg := cause.Error()
		return e.store.SetStatus(ctx, run.ID, enums.WorkflowRunFailed, &msg)
	}
	msg := cause.Error()
	return e.store.Reschedule(ctx, run.ID, e.now().Add(retryDelay(attempts)), attempts, &msg)
}

func retryDelay(attempts int) time.Duration {
	delay := retryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return delay
}

// Execution is the per-wake-up replay context handed to handlers.
type Execution struct {
	engine      *Engine
	run         *models.WorkflowRun
	now         time.Time
	occurrences map[string]int
}

// RunID returns the identifier of the underlying run.
func (ex *Execution) RunID() string {
	return ex.run.ID.String()
}

// SubjectKey returns the run's subject key.
func (ex *Execution) SubjectKey() string {
	return ex.run.SubjectKey
}

// DecodePayload unmarshals the trigger payload into out.
func (ex *Execution) DecodePayload(out any) error {
	return json.Unmarshal(ex.run.Payload, out)
}

// RunStep executes fn exactly once per occurrence of name within the run.
// On replay the persisted result is returned without re-executing fn.
// Transient errors park the run with backoff; once the attempt budget is
// exhausted the step is recorded failed and the timeline moves on.
func (ex *Execution) RunStep(ctx context.Context, name string, fn func(context.Context) (any, error)) (json.RawMessage, error) {
	occurrence := ex.occurrences[name]
	ex.occurrences[name]++

	step, err := ex.engine.store.StepResult(ctx, ex.run.ID, name, occurrence)
	if err != nil {
		return nil, err
	}
	if step != nil {
		if step.Status == enums.WorkflowStepCompleted {
			return step.Result, nil
		}
		// Permanently failed step: skipped on every replay.
		return nil, nil
	}

	result, err := fn(ctx)
	if err != nil {
		return nil, ex.stepFailed(ctx, name, occurrence, err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal step %q result: %w", name, err)
	}
	if err := ex.engine.store.RecordStep(ctx, models.WorkflowStep{
		RunID:      ex.run.ID,
		Name:       name,
		Occurrence: occurrence,
		Status:     enums.WorkflowStepCompleted,
		Result:     encoded,
	}); err != nil {
		return nil, err
	}
	if ex.run.Attempts > 0 {
		wakeAt := ex.wakeAtOrNow()
		if err := ex.engine.store.Reschedule(ctx, ex.run.ID, wakeAt, 0, nil); err != nil {
			return nil, err
		}
		ex.run.Attempts = 0
	}
	return encoded, nil
}

func (ex *Execution) stepFailed(ctx context.Context, name string, occurrence int, cause error) error {
	logCtx := ex.engine.logg.WithFields(ctx, map[string]any{
		"run_id":   ex.run.ID.String(),
		"step":     name,
		"attempts": ex.run.Attempts + 1,
	})

	attempts := ex.run.Attempts + 1
	if attempts >= ex.engine.maxStepAttempts {
		ex.engine.logg.Error(logCtx, "workflow step failed permanently", cause)
		if err := ex.engine.store.RecordStep(ctx, models.WorkflowStep{
			RunID:      ex.run.ID,
			Name:       name,
			Occurrence: occurrence,
			Status:     enums.WorkflowStepFailed,
		}); err != nil {
			return err
		}
		wakeAt := ex.now
		if err := ex.engine.store.Reschedule(ctx, ex.run.ID, wakeAt, 0, nil); err != nil {
			return err
		}
		ex.run.Attempts = 0
		return ErrSuspended
	}

	ex.engine.logg.Warn(logCtx, "workflow step failed, scheduling retry")
	msg := cause.Error()
	wakeAt := ex.now.Add(retryDelay(attempts))
	if err := ex.engine.store.Reschedule(ctx, ex.run.ID, wakeAt, attempts, &msg); err != nil {
		return err
	}
	return ErrSuspended
}

// Sleep parks the run for d. The wake time is persisted on first encounter
// so replays resume from the same deadline.
func (ex *Execution) Sleep(ctx context.Context, d time.Duration) error {
	occurrence := ex.occurrences[sleepStepName]
	ex.occurrences[sleepStepName]++

	step, err := ex.engine.store.StepResult(ctx, ex.run.ID, sleepStepName, occurrence)
	if err != nil {
		return err
	}
	if step != nil {
		var wakeAt time.Time
		if err := json.Unmarshal(step.Result, &wakeAt); err != nil {
			return fmt.Errorf("decode sleep deadline: %w", err)
		}
		if !ex.now.Before(wakeAt) {
			return nil
		}
		if err := ex.engine.store.Reschedule(ctx, ex.run.ID, wakeAt, ex.run.Attempts, nil); err != nil {
			return err
		}
		return ErrSuspended
	}

	wakeAt := ex.now.Add(d)
	encoded, err := json.Marshal(wakeAt)
	if err != nil {
		return fmt.Errorf("marshal sleep deadline: %w", err)
	}
	if err := ex.engine.store.RecordStep(ctx, models.WorkflowStep{
		RunID:      ex.run.ID,
		Name:       sleepStepName,
		Occurrence: occurrence,
		Status:     enums.WorkflowStepCompleted,
		Result:     encoded,
	}); err != nil {
		return err
	}
	if err := ex.engine.store.Reschedule(ctx, ex.run.ID, wakeAt, ex.run.Attempts, nil); err != nil {
		return err
	}
	return ErrSuspended
}

func (ex *Execution) wakeAtOrNow() time.Time {
	if ex.run.WakeAt != nil {
		return *ex.run.WakeAt
	}
	return ex.now
}
