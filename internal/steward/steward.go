// Package steward implements the L5b scheduler: cron/event-triggered
// steward execution with error isolation and a bounded execution
// history, grounded on the teacher's internal/controller reconciliation
// shape and internal/eventbus dispatch conventions.
package steward

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// historyLimit bounds how many runs ListStewardRuns returns by default,
// mirroring the orchestrator metadata's capped sessionHistory
// ring-buffer convention (spec.md §3) applied to steward run history.
const historyLimit = 50

// Executor runs one steward invocation and returns a JSON-serializable
// output payload or an error. No separate count of processed items is
// returned; any such count lives only inside the output payload.
type Executor func(ctx context.Context, agent *types.Element, trigger types.Trigger) (output map[string]interface{}, err error)

// Scheduler holds the agent registry (the store), a cron driver, an
// event bus, and the executors keyed by StewardFocus. It records every
// invocation via store.RecordStewardRunStart/FinishStewardRun.
type Scheduler struct {
	store  *store.Store
	logger *log.Logger

	cron   *cronDriver
	bus    *Bus

	executors map[types.StewardFocus]Executor
}

// New builds a Scheduler with no executors registered; callers add the
// merge/docs executors (or their own) via RegisterExecutor.
func New(s *store.Store, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	sched := &Scheduler{
		store:     s,
		logger:    logger,
		cron:      newCronDriver(),
		bus:       NewBus(),
		executors: make(map[types.StewardFocus]Executor),
	}
	return sched
}

// RegisterExecutor assigns the executor function invoked for stewards
// with the given focus.
func (s *Scheduler) RegisterExecutor(focus types.StewardFocus, exec Executor) {
	s.executors[focus] = exec
}

// Bus exposes the scheduler's event bus so callers (e.g. the store
// mutation path, or an external webhook) can publish named events.
func (s *Scheduler) Bus() *Bus { return s.bus }

// Start registers every steward agent's triggers (cron expressions with
// the cron driver, event names with the bus) and starts the cron
// driver. Call Stop to tear both down.
func (s *Scheduler) Start(ctx context.Context) error {
	agents, err := s.listStewards(ctx)
	if err != nil {
		return err
	}
	for _, agent := range agents {
		var meta types.AgentMeta
		if _, err := agent.MetadataValue("role", &meta.Role); err != nil {
			continue
		}
		_, _ = agent.MetadataValue("stewardFocus", &meta.StewardFocus)
		_, _ = agent.MetadataValue("triggers", &meta.Triggers)
		for _, trig := range meta.Triggers {
			s.registerTrigger(agent.ID, trig)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron driver. The event bus has no background loop to
// stop; handlers simply stop being registered against live events.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) registerTrigger(agentID string, trig types.Trigger) {
	switch trig.Kind {
	case types.TriggerCron:
		s.cron.Schedule(trig.Schedule, func() {
			_, _ = s.ExecuteSteward(context.Background(), agentID, trig)
		})
	case types.TriggerEvent:
		s.bus.Register(agentID, trig.Event, func(ctx context.Context, _ Event) {
			_, _ = s.ExecuteSteward(ctx, agentID, trig)
		})
	}
}

func (s *Scheduler) listStewards(ctx context.Context) ([]*types.Element, error) {
	var out []*types.Element
	cursor := ""
	for {
		page, next, err := s.store.ListPaginated(ctx, store.ListFilter{Type: types.ElementEntity, Cursor: cursor, Limit: 500})
		if err != nil {
			return nil, err
		}
		for _, el := range page {
			var meta types.AgentMeta
			if _, err := el.MetadataValue("role", &meta.Role); err != nil {
				continue
			}
			if meta.Role == types.RoleSteward {
				out = append(out, el)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}

// StewardResult is the outcome ExecuteSteward reports and records.
type StewardResult struct {
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Output     map[string]interface{} `json:"output,omitempty"`
	DurationMs int64                  `json:"durationMs"`
}

// ExecuteSteward runs the steward agent's registered executor. Per
// spec.md §4.6: resolve the agent, validate it is a steward, invoke its
// executor with panic/error isolation (one steward's failure never
// destabilizes the scheduler or its peers), and record the outcome in
// history regardless of success.
func (s *Scheduler) ExecuteSteward(ctx context.Context, agentID string, trigger types.Trigger) (result StewardResult, err error) {
	started := time.Now().UTC()
	runID, recErr := s.store.RecordStewardRunStart(ctx, agentID, string(trigger.Kind), started)
	if recErr != nil {
		s.logger.Printf("steward: failed to record run start for %s: %v", agentID, recErr)
	}

	defer func() {
		if r := recover(); r != nil {
			result = StewardResult{Success: false, Error: fmt.Sprintf("panic: %v", r), DurationMs: time.Since(started).Milliseconds()}
		}
		s.finish(ctx, runID, started, result)
	}()

	agent, getErr := s.store.Get(ctx, agentID)
	if getErr != nil {
		result = StewardResult{Success: false, Error: "steward agent not found", DurationMs: time.Since(started).Milliseconds()}
		return result, nil
	}

	var meta types.AgentMeta
	if _, mvErr := agent.MetadataValue("role", &meta.Role); mvErr != nil || !meta.Role.Valid() {
		result = StewardResult{Success: false, Error: "agent is not a steward", DurationMs: time.Since(started).Milliseconds()}
		return result, nil
	}
	_, _ = agent.MetadataValue("stewardFocus", &meta.StewardFocus)
	if !meta.IsSteward() {
		result = StewardResult{Success: false, Error: "agent is not a steward", DurationMs: time.Since(started).Milliseconds()}
		return result, nil
	}

	exec, ok := s.executors[meta.StewardFocus]
	if !ok {
		result = StewardResult{Success: false, Output: map[string]interface{}{"output": "Unknown steward focus"}, DurationMs: time.Since(started).Milliseconds()}
		return result, nil
	}

	output, execErr := exec(ctx, agent, trigger)
	if execErr != nil {
		result = StewardResult{Success: false, Error: execErr.Error(), Output: output, DurationMs: time.Since(started).Milliseconds()}
		return result, nil
	}
	result = StewardResult{Success: true, Output: output, DurationMs: time.Since(started).Milliseconds()}
	return result, nil
}

func (s *Scheduler) finish(ctx context.Context, runID int64, started time.Time, result StewardResult) {
	if runID == 0 {
		return
	}
	status := "success"
	if !result.Success {
		status = "failed"
	}
	summary := ""
	if result.Output != nil {
		summary = fmt.Sprintf("%v", result.Output)
	}
	if err := s.store.FinishStewardRun(ctx, runID, time.Now().UTC(), status, summary, result.Error); err != nil {
		s.logger.Printf("steward: failed to finish run %d: %v", runID, err)
	}
}

// History returns the steward's execution history, newest first.
func (s *Scheduler) History(ctx context.Context, agentID string) ([]store.StewardRun, error) {
	runs, err := s.store.ListStewardRuns(ctx, agentID, historyLimit)
	if err != nil {
		return nil, errs.Storage("steward.History", errs.CodeDatabaseError, err)
	}
	return runs, nil
}
