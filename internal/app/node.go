package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pycheck/internal/adapters/analyzer"
	"go.trai.ch/pycheck/internal/adapters/config"
	"go.trai.ch/pycheck/internal/adapters/daemon"
	"go.trai.ch/pycheck/internal/adapters/fscache"
	"go.trai.ch/pycheck/internal/adapters/logger"
	"go.trai.ch/pycheck/internal/adapters/metastore"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

// NodeID is the unique identifier for the application Graft node.
const NodeID graft.ID = "app"

// Components aggregates the resolved adapters the CLI needs.
type Components struct {
	Options   domain.Options
	Logger    ports.Logger
	Connector ports.DaemonConnector
	App       *App
}

func init() {
	graft.Register(graft.Node[*Components]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			daemon.NodeID,
			analyzer.NodeID,
			metastore.NodeID,
			fscache.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			opts, err := graft.Dep[domain.Options](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			connector, err := graft.Dep[ports.DaemonConnector](ctx)
			if err != nil {
				return nil, err
			}
			an, err := graft.Dep[ports.Analyzer](ctx)
			if err != nil {
				return nil, err
			}
			store, err := graft.Dep[ports.MetadataStore](ctx)
			if err != nil {
				return nil, err
			}
			view, err := graft.Dep[ports.FileView](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{
				Options:   opts,
				Logger:    log,
				Connector: connector,
				App:       New(opts, log, connector, an, store, view),
			}, nil
		},
	})
}
