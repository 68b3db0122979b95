package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/idgen"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

const (
	maxBranchSlug    = 30
	maxWorktreeSlug  = 30
)

// GenerateBranchName builds agent/{name}/{taskId}-{slug30}, per
// spec.md §4.4. workerName and the title-derived slug are lowercased
// and non-[a-z0-9-] characters replaced with dashes; grounded on the
// teacher's worktree/branch sanitization convention
// (internal/syncbranch), generalized to the spec's naming scheme.
func GenerateBranchName(workerName, taskID, titleSlug string) string {
	name := idgen.Slug(workerName, maxBranchSlug)
	slug := idgen.Slug(titleSlug, maxBranchSlug)
	return fmt.Sprintf("agent/%s/%s-%s", name, taskID, slug)
}

// GenerateWorktreePath builds .stoneforge/.worktrees/{name}-{slug30}.
func GenerateWorktreePath(workerName, titleSlug string) string {
	name := idgen.Slug(workerName, maxWorktreeSlug)
	slug := idgen.Slug(titleSlug, maxWorktreeSlug)
	return fmt.Sprintf(".stoneforge/.worktrees/%s-%s", name, slug)
}

// AssignOptions customizes AssignToAgent; omitted Branch/Worktree are
// derived deterministically.
type AssignOptions struct {
	Branch        string
	Worktree      string
	SessionID     string
	MarkAsStarted bool
}

// AssignToAgent writes the assignment onto task's metadata: assignee,
// plus orchestrator assignedAgent, branch, worktree, sessionId, and (if
// MarkAsStarted) startedAt + status=in_progress.
func (d *Dispatcher) AssignToAgent(ctx context.Context, taskID, agentID string, opts AssignOptions) (*types.Element, error) {
	task, err := d.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	agent, err := d.store.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	var workerName string
	if ok, _ := agent.MetadataValue("name", &workerName); !ok || workerName == "" {
		workerName = agentID
	}
	titleSlug := taskID
	var title string
	if ok, _ := task.MetadataValue("title", &title); ok && title != "" {
		titleSlug = title
	}

	branch := opts.Branch
	if branch == "" {
		branch = GenerateBranchName(workerName, taskID, titleSlug)
	}
	worktree := opts.Worktree
	if worktree == "" {
		worktree = GenerateWorktreePath(workerName, titleSlug)
	}

	var orch types.OrchestratorMeta
	_, _ = task.MetadataValue("orchestrator", &orch)
	orch.AssignedAgent = agentID
	orch.Branch = branch
	orch.Worktree = worktree
	if opts.SessionID != "" {
		orch.SessionID = opts.SessionID
	}

	patchMeta := map[string]interface{}{"orchestrator": orch, "assignee": agentID}
	if opts.MarkAsStarted {
		now := time.Now().UTC()
		orch.StartedAt = &now
		patchMeta["orchestrator"] = orch
		patchMeta["status"] = string(types.TaskInProgress)
	}

	merged, err := mergeMetadataPatch(task, patchMeta)
	if err != nil {
		return nil, errs.Validation("dispatch.AssignToAgent", errs.CodeInvalidMetadata, err)
	}
	if err := d.store.Update(ctx, taskID, map[string]interface{}{"metadata": merged}, agentID); err != nil {
		return nil, err
	}
	return d.store.Get(ctx, taskID)
}
