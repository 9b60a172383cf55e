package driven

import (
	"context"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// PlatformAdapter turns an abstract task into calls against one external
// creator platform. One adapter instance serves a platform type and keeps a
// separate session per (platformID, clientID), so credentials never leak
// across accounts.
type PlatformAdapter interface {
	Type() model.PlatformType

	// Initialize binds the credentials to the session of cfg.PlatformID and
	// cfg.ClientID. It returns false when the platform rejects them.
	Initialize(ctx context.Context, cfg model.AdapterConfig) (bool, error)

	IsInitialized(platformID, clientID string) bool

	// Execute runs the task against the session bound for task.PlatformID and
	// task.ClientID. Implementations call model.CheckCancelled before any
	// externally visible mutating request.
	Execute(ctx context.Context, task model.TaskPayload) (model.ExecutionResult, error)

	CredentialRequirements() []string
	SupportedTasks() []model.TaskType
}
