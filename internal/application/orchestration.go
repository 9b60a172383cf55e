package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// OrchestrationEngine turns a fired automation into submitted tasks. Trigger
// conditions are evaluated elsewhere; the engine only consumes matches.
type OrchestrationEngine struct {
	automations driven.AutomationStore
	tasks       *TaskService
	now         func() time.Time
}

// NewOrchestrationEngine creates an OrchestrationEngine.
func NewOrchestrationEngine(automations driven.AutomationStore, tasks *TaskService) *OrchestrationEngine {
	return &OrchestrationEngine{automations: automations, tasks: tasks, now: time.Now}
}

// HandleManualTrigger fires the automation on operator request.
func (e *OrchestrationEngine) HandleManualTrigger(ctx context.Context, automationID string) ([]string, error) {
	return e.HandleTrigger(ctx, model.Trigger{
		AutomationID: automationID,
		Type:         model.TriggerManual,
		FiredAt:      e.now().UTC(),
	})
}

// HandleTrigger submits one task per action of the triggered automation and
// returns their ids in action order. Actions submitted before a failing one
// stay submitted; the ids of those are returned with the error.
func (e *OrchestrationEngine) HandleTrigger(ctx context.Context, trigger model.Trigger) ([]string, error) {
	automation, err := e.automations.Get(ctx, trigger.AutomationID)
	if err != nil {
		return nil, fmt.Errorf("load automation %s: %w", trigger.AutomationID, err)
	}
	if automation == nil {
		return nil, fmt.Errorf("automation %s: %w", trigger.AutomationID, model.ErrNotFound)
	}
	if !automation.IsActive {
		return nil, fmt.Errorf("automation %s: %w", automation.ID, model.ErrAutomationInactive)
	}

	ids := make([]string, 0, len(automation.Actions))
	for i, action := range automation.Actions {
		task, err := e.tasks.submit(ctx, payloadForAction(action), automation.ID)
		if err != nil {
			return ids, fmt.Errorf("automation %s action %d: %w", automation.ID, i, err)
		}
		ids = append(ids, task.ID)
	}

	firedAt := trigger.FiredAt
	if firedAt.IsZero() {
		firedAt = e.now().UTC()
	}
	if err := e.automations.MarkTriggered(ctx, automation.ID, firedAt); err != nil {
		return ids, fmt.Errorf("mark automation %s triggered: %w", automation.ID, err)
	}

	slog.Info("automation triggered",
		"automation_id", automation.ID,
		"trigger_type", trigger.Type,
		"tasks", len(ids),
	)
	return ids, nil
}

// payloadForAction maps an action to a task payload. Well-known params fill
// the matching payload fields; all params are passed through unchanged.
func payloadForAction(action model.AutomationAction) model.TaskPayload {
	payload := model.TaskPayload{
		PlatformID:   action.Platform,
		TaskType:     action.Type,
		Priority:     action.Priority,
		ScheduledFor: action.ScheduledTime,
		Params:       action.Params,
	}
	if content, ok := action.Params["content"]; ok {
		payload.Content = content
	}
	if recipient, ok := action.Params["recipient"]; ok && recipient != "" {
		payload.Recipients = []string{recipient}
	}
	return payload
}
