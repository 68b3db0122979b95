// Package dispatch implements the L4 dispatcher & pool: admission
// control over agent pools, rate-limit fallback across an executable
// chain, atomic assign+notify dispatch, and predecessor consultation.
// The reconcile-loop shape is grounded on the teacher's
// internal/controller/controller.go Controller.Start/reconcileOnce
// (K8s pod reconciliation generalized to session-slot accounting).
package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/graph"
	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// DefaultReconcileInterval mirrors the teacher's
// controller.DefaultReconcileInterval.
const DefaultReconcileInterval = 10 * time.Second

// Config holds the Dispatcher's tunables.
type Config struct {
	ReconcileInterval time.Duration
}

// Dispatcher owns pool admission, rate-limit fallback, dispatch, and
// predecessor consultation over a Store and its derived task graph.
type Dispatcher struct {
	store  *store.Store
	graph  *graph.Engine
	config Config
	logger *log.Logger

	predecessors *predecessorTracker
	sessions     SessionManager
}

// New builds a Dispatcher. A nil logger falls back to log.Default, the
// same default the teacher's Controller.New uses.
func New(s *store.Store, config Config, logger *log.Logger) *Dispatcher {
	if config.ReconcileInterval == 0 {
		config.ReconcileInterval = DefaultReconcileInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		store:        s,
		graph:        graph.New(s),
		config:       config,
		logger:       logger,
		predecessors: newPredecessorTracker(),
	}
}

// Start runs the dispatcher's reconciliation loop until ctx is
// cancelled, assigning ready tasks to admissible agents each tick.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Printf("dispatcher starting (interval=%s)", d.config.ReconcileInterval)

	if err := d.reconcileOnce(ctx); err != nil {
		d.logger.Printf("initial reconciliation error: %v", err)
	}

	ticker := time.NewTicker(d.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Printf("dispatcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := d.reconcileOnce(ctx); err != nil {
				d.logger.Printf("reconciliation error: %v", err)
			}
		}
	}
}

func (d *Dispatcher) reconcileOnce(ctx context.Context) error {
	d.predecessors.reap()

	ready, err := d.graph.GetReadyTasks(ctx, 0, types.WorkFilter{Unassigned: true})
	if err != nil {
		return err
	}
	if len(ready) == 0 {
		return nil
	}

	agents, err := d.listWorkerAgents(ctx)
	if err != nil {
		return err
	}
	pools, err := d.listEnabledPools(ctx)
	if err != nil {
		return err
	}
	active, err := d.activeAssignmentCounts(ctx)
	if err != nil {
		return err
	}

	for _, task := range ready {
		agent, ok := d.pickAgentForTask(agents, pools, active)
		if !ok {
			continue
		}
		if _, err := d.Dispatch(ctx, task.ID, agent.ID, DispatchOptions{}); err != nil {
			d.logger.Printf("ERROR dispatching task %s to agent %s: %v", task.ID, agent.ID, err)
			continue
		}
		active[agent.ID]++
	}
	return nil
}

// SpawnRequest describes a candidate admission: the agent-type
// dimensions a pool's AgentTypeSpec.Accepts checks against.
type SpawnRequest struct {
	Role         types.AgentRole
	WorkerMode   types.WorkerMode
	StewardFocus types.StewardFocus
}

// PoolSpawnCheck identifies the first enabled pool whose agent types
// accept req, and reports whether it can currently admit one more
// agent: activeCount < maxSize && activeByType[type] < agentType.maxSlots.
// Per spec.md §4.4.
func PoolSpawnCheck(pools []types.Pool, req SpawnRequest, activeCount int, activeByType map[string]int) (pool *types.Pool, agentType *types.AgentTypeSpec, canSpawn bool) {
	for i := range pools {
		p := pools[i]
		at, ok := p.GoverningAgentType(req.Role, req.WorkerMode, req.StewardFocus)
		if !ok {
			continue
		}
		if activeCount >= p.MaxSize {
			return &p, at, false
		}
		if at.MaxSlots != nil && activeByType[typeKey(req)] >= *at.MaxSlots {
			return &p, at, false
		}
		return &p, at, true
	}
	return nil, nil, false
}

func typeKey(req SpawnRequest) string {
	switch req.Role {
	case types.RoleWorker:
		return string(req.Role) + ":" + string(req.WorkerMode)
	case types.RoleSteward:
		return string(req.Role) + ":" + string(req.StewardFocus)
	default:
		return string(req.Role)
	}
}

func (d *Dispatcher) listWorkerAgents(ctx context.Context) ([]*types.Element, error) {
	var out []*types.Element
	cursor := ""
	for {
		page, next, err := d.store.ListPaginated(ctx, store.ListFilter{Type: types.ElementEntity, Cursor: cursor, Limit: 500})
		if err != nil {
			return nil, err
		}
		for _, el := range page {
			var meta types.AgentMeta
			if ok, _ := el.MetadataValue("role", &meta.Role); !ok {
				continue
			}
			if meta.Role != types.RoleWorker {
				continue
			}
			out = append(out, el)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}

func (d *Dispatcher) listEnabledPools(ctx context.Context) ([]types.Pool, error) {
	value, ok, err := d.store.GetConfig(ctx, "pools")
	if err != nil || !ok {
		return nil, err
	}
	pools, err := decodePools(value)
	if err != nil {
		return nil, errs.Validation("dispatch.listEnabledPools", errs.CodeInvalidInput, err)
	}
	var enabled []types.Pool
	for _, p := range pools {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled, nil
}

func (d *Dispatcher) activeAssignmentCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	cursor := ""
	for {
		page, next, err := d.store.ListPaginated(ctx, store.ListFilter{Type: types.ElementTask, Cursor: cursor, Limit: 500})
		if err != nil {
			return nil, err
		}
		for _, el := range page {
			var assignee string
			if ok, _ := el.MetadataValue("assignee", &assignee); ok && assignee != "" {
				var status string
				_, _ = el.MetadataValue("status", &status)
				if !types.ClosedStatuses[types.TaskStatus(status)] {
					counts[assignee]++
				}
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return counts, nil
}

// agentDimensions reads the role/workerMode/stewardFocus triple off an
// entity element's metadata.
func agentDimensions(agent *types.Element) (role types.AgentRole, mode types.WorkerMode, focus types.StewardFocus) {
	_, _ = agent.MetadataValue("role", &role)
	_, _ = agent.MetadataValue("workerMode", &mode)
	_, _ = agent.MetadataValue("stewardFocus", &focus)
	return
}

// poolBusyCounts tallies, per governing pool name and per agent-type
// dimension key, how many currently-busy agents (active[id] > 0) that
// pool/type is already carrying — the activeCount/activeByType inputs
// PoolSpawnCheck compares against maxSize/maxSlots.
func poolBusyCounts(agents []*types.Element, pools []types.Pool, active map[string]int) (perPool map[string]int, perType map[string]int) {
	perPool = make(map[string]int)
	perType = make(map[string]int)
	for _, agent := range agents {
		if active[agent.ID] == 0 {
			continue
		}
		role, mode, focus := agentDimensions(agent)
		req := SpawnRequest{Role: role, WorkerMode: mode, StewardFocus: focus}
		for i := range pools {
			if _, ok := pools[i].GoverningAgentType(req.Role, req.WorkerMode, req.StewardFocus); ok {
				perPool[pools[i].Name]++
				perType[typeKey(req)]++
				break
			}
		}
	}
	return perPool, perType
}

func (d *Dispatcher) pickAgentForTask(agents []*types.Element, pools []types.Pool, active map[string]int) (*types.Element, bool) {
	perPool, perType := poolBusyCounts(agents, pools, active)

	var best *types.Element
	bestPriority := -1
	for _, agent := range agents {
		if active[agent.ID] > 0 {
			continue // already carrying an active task
		}
		role, mode, focus := agentDimensions(agent)
		req := SpawnRequest{Role: role, WorkerMode: mode, StewardFocus: focus}

		pool, at, ok := findGoverningAgentType(pools, req)
		if !ok {
			continue
		}
		if perPool[pool.Name] >= pool.MaxSize {
			continue
		}
		if at.MaxSlots != nil && perType[typeKey(req)] >= *at.MaxSlots {
			continue
		}
		if best == nil || at.Priority > bestPriority {
			best = agent
			bestPriority = at.Priority
		}
	}
	return best, best != nil
}

func findGoverningAgentType(pools []types.Pool, req SpawnRequest) (*types.Pool, *types.AgentTypeSpec, bool) {
	for i := range pools {
		if at, ok := pools[i].GoverningAgentType(req.Role, req.WorkerMode, req.StewardFocus); ok {
			return &pools[i], at, true
		}
	}
	return nil, nil, false
}
