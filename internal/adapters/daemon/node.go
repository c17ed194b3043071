package daemon

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pycheck/internal/adapters/logger"
	"go.trai.ch/pycheck/internal/core/ports"
)

// NodeID is the unique identifier for the daemon connector Graft node.
const NodeID graft.ID = "adapter.daemon"

func init() {
	graft.Register(graft.Node[ports.DaemonConnector]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.DaemonConnector, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewConnector(log)
		},
	})
}
