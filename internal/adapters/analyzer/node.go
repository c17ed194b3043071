package analyzer

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pycheck/internal/adapters/config"
	"go.trai.ch/pycheck/internal/adapters/logger"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

const NodeID graft.ID = "adapter.analyzer"

func init() {
	graft.Register(graft.Node[ports.Analyzer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Analyzer, error) {
			opts, err := graft.Dep[domain.Options](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(opts, log), nil
		},
	})
}
