package conversation

import (
	"context"

	domdialogue "github.com/kailas-cloud/hwfinder/internal/domain/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/usecase/dialogue"
)

// Handler applies dialogue events to a conversation state.
type Handler interface {
	Greet(st *domdialogue.State) dialogue.Reply
	Handle(ctx context.Context, st *domdialogue.State, ev dialogue.Event) (dialogue.Reply, error)
}
