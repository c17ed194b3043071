// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/pycheck/internal/adapters/analyzer"
	_ "go.trai.ch/pycheck/internal/adapters/config"
	_ "go.trai.ch/pycheck/internal/adapters/daemon"
	_ "go.trai.ch/pycheck/internal/adapters/fscache"
	_ "go.trai.ch/pycheck/internal/adapters/logger"
	_ "go.trai.ch/pycheck/internal/adapters/metastore"
	// Register the application node.
	_ "go.trai.ch/pycheck/internal/app"
)
