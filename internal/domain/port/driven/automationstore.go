package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// AutomationStore defines the driven port for automation definitions.
type AutomationStore interface {
	Save(ctx context.Context, automation model.Automation) error
	// Get returns the automation, or (nil, nil) if it does not exist.
	Get(ctx context.Context, id string) (*model.Automation, error)
	MarkTriggered(ctx context.Context, id string, at time.Time) error
}
