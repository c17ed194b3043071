package fscache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pycheck/internal/core/ports"
)

// NodeID is the unique identifier for the file view Graft node.
const NodeID graft.ID = "adapter.fscache"

func init() {
	graft.Register(graft.Node[ports.FileView]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(context.Context) (ports.FileView, error) {
			return New(), nil
		},
	})
}
