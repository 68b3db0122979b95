package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// DispatchOptions forwards to AssignToAgent.
type DispatchOptions struct {
	Branch        string
	Worktree      string
	SessionID     string
	MarkAsStarted bool
}

// Result is what Dispatch returns on success.
type Result struct {
	Task            *types.Element
	Agent           *types.Element
	Notification    *types.Element
	Channel         *types.Element
	IsNewAssignment bool
	DispatchedAt    time.Time
}

// Dispatch assigns the task to the agent and posts a notification, per
// spec.md §4.4:
//  1. fetch task and agent,
//  2. resolve the agent's channel before assigning (so a missing
//     channel never leaves an orphaned assignment),
//  3. assign,
//  4. compose and persist a suppressInbox notification message,
//  5. return the composed result.
//
// Steps 3 and 4 are separate store writes, each in its own transaction;
// if composing the notification fails, the assignment made in step 3
// stays in place and is not rolled back.
func (d *Dispatcher) Dispatch(ctx context.Context, taskID, agentID string, opts DispatchOptions) (*Result, error) {
	task, err := d.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	agent, err := d.store.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	var meta types.AgentMeta
	_, _ = agent.MetadataValue("role", &meta.Role)
	_, _ = agent.MetadataValue("channelId", &meta.ChannelID)
	if meta.ChannelID == "" {
		return nil, errs.NotFound("dispatch.Dispatch", fmt.Errorf("agent %s has no channel", agentID))
	}
	channel, err := d.store.Get(ctx, meta.ChannelID)
	if err != nil {
		return nil, err
	}

	var prevOrch types.OrchestratorMeta
	_, _ = task.MetadataValue("orchestrator", &prevOrch)
	isNew := prevOrch.AssignedAgent == ""

	assigned, err := d.AssignToAgent(ctx, taskID, agentID, AssignOptions{
		Branch:        opts.Branch,
		Worktree:      opts.Worktree,
		SessionID:     opts.SessionID,
		MarkAsStarted: opts.MarkAsStarted,
	})
	if err != nil {
		return nil, err
	}

	notification, err := d.composeNotification(ctx, assigned, agent, channel)
	if err != nil {
		return nil, err
	}

	return &Result{
		Task:            assigned,
		Agent:           agent,
		Notification:    notification,
		Channel:         channel,
		IsNewAssignment: isNew,
		DispatchedAt:    time.Now().UTC(),
	}, nil
}

func (d *Dispatcher) composeNotification(ctx context.Context, task, agent, channel *types.Element) (*types.Element, error) {
	now := time.Now().UTC()

	var title string
	_, _ = task.MetadataValue("title", &title)
	body := fmt.Sprintf("Assigned task %s to %s", task.ID, agent.ID)
	if title != "" {
		body = fmt.Sprintf("Assigned %q (%s) to %s", title, task.ID, agent.ID)
	}

	docID, err := d.store.NextChildID(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	docMeta, _ := json.Marshal(map[string]interface{}{
		"contentType": "text",
		"content":     body,
	})
	doc := &types.Element{
		ID:        docID,
		Type:      types.ElementDocument,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: agent.ID,
		Tags:      []string{"dispatch-notification"},
		Metadata:  docMeta,
	}
	if err := d.store.Create(ctx, doc); err != nil {
		return nil, err
	}

	msgID, err := d.store.NextChildID(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	msgMeta, _ := json.Marshal(map[string]interface{}{
		"channelId":     channel.ID,
		"documentId":    doc.ID,
		"suppressInbox": true,
	})
	msg := &types.Element{
		ID:        msgID,
		Type:      types.ElementMessage,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: agent.ID,
		Metadata:  msgMeta,
	}
	if err := d.store.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
