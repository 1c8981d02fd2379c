package fetch

import (
	"context"

	"github.com/kbvqa/flmrctl/internal/execx"
)

// Commander runs an external command with the caller's standard streams
// attached.
//
//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks
type Commander interface {
	Run(ctx context.Context, name string, args ...string) execx.Result
}

// systemCommander executes commands on the host.
type systemCommander struct{}

func (systemCommander) Run(ctx context.Context, name string, args ...string) execx.Result {
	return execx.Run(ctx, name, args...)
}
