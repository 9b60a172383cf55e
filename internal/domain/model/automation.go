package model

import (
	"encoding/json"
	"time"
)

// TriggerType names what fired an automation. Only manual triggers are
// produced inside this service; the rest arrive already evaluated.
type TriggerType string

const (
	TriggerManual               TriggerType = "MANUAL"
	TriggerSubscriptionDip      TriggerType = "SUBSCRIPTION_DIP"
	TriggerROIThreshold         TriggerType = "ROI_THRESHOLD"
	TriggerCampaignUnderperform TriggerType = "CAMPAIGN_UNDERPERFORMANCE"
	TriggerContentPerformance   TriggerType = "CONTENT_PERFORMANCE"
	TriggerExperimentConclusion TriggerType = "EXPERIMENT_CONCLUSION"
)

// AutomationAction is one configured step of an automation.
type AutomationAction struct {
	Type          TaskType          `json:"type"`
	Platform      string            `json:"platform"`
	Params        map[string]string `json:"params,omitempty"`
	Priority      Priority          `json:"priority,omitempty"`
	ScheduledTime *time.Time        `json:"scheduled_time,omitempty"`
}

// Automation is a trigger definition and its actions. It is owned by an
// external collaborator; this service only reads it and stamps LastTriggeredAt.
type Automation struct {
	ID              string
	Name            string
	TriggerType     TriggerType
	Conditions      json.RawMessage
	Actions         []AutomationAction
	IsActive        bool
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
}

// Trigger is an already-matched firing of an automation.
type Trigger struct {
	AutomationID string
	Type         TriggerType
	FiredAt      time.Time
}
