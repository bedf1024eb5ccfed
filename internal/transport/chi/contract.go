package chi

import (
	"context"

	dombatch "github.com/kailas-cloud/hwfinder/internal/domain/batch"
	domdialogue "github.com/kailas-cloud/hwfinder/internal/domain/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/usecase/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/usecase/health"
)

// Conversations owns live conversations.
type Conversations interface {
	Start() (string, dialogue.Reply)
	Send(ctx context.Context, id string, ev dialogue.Event) (dialogue.Reply, error)
	Cancel(id string) (bool, error)
	End(id string) error
	Snapshot(id string) (domdialogue.State, error)
}

// DetailResolver looks up one product by exact name.
type DetailResolver interface {
	Resolve(ctx context.Context, name string) (product.Product, error)
}

// BatchRunner answers many queries without dialogue.
type BatchRunner interface {
	Run(ctx context.Context, queries []string) []dombatch.Result
}

// HealthChecker reports dependency status.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
