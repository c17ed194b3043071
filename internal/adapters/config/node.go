package config

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/pycheck/internal/core/domain"
)

const NodeID graft.ID = "adapter.config"

func init() {
	graft.Register(graft.Node[domain.Options]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (domain.Options, error) {
			cwd, err := os.Getwd()
			if err != nil {
				return domain.Options{}, err
			}
			return Load(cwd)
		},
	})
}
