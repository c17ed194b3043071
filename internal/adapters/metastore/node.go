package metastore

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pycheck/internal/adapters/config"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

// NodeID is the unique identifier for the metadata store Graft node.
const NodeID graft.ID = "adapter.metastore"

func init() {
	graft.Register(graft.Node[ports.MetadataStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.MetadataStore, error) {
			opts, err := graft.Dep[domain.Options](ctx)
			if err != nil {
				return nil, err
			}
			return Open(opts)
		},
	})
}

// Open selects the backend the options ask for.
func Open(opts domain.Options) (ports.MetadataStore, error) {
	if opts.CacheDir == domain.DiscardCacheDir {
		return discardStore{}, nil
	}
	if opts.SQLiteCache {
		return NewSQLiteStore(opts.CacheDir + ".db")
	}
	return NewDirStore(opts.CacheDir)
}
