package ports

import (
	"context"
	"encoding/json"

	"go.trai.ch/pycheck/internal/core/domain"
)

// Analyzer is the boundary to the semantic analysis engine. The build
// infrastructure treats it as an opaque collaborator: it asks for the
// module graph, hands it stale SCCs to process, and forwards changed and
// removed files for fine-grained updates.
//
//go:generate mockgen -source=analyzer.go -destination=mocks/mock_analyzer.go -package=mocks
type Analyzer interface {
	// BuildGraph scans the given sources through the file view and
	// returns the module graph, keyed by module id.
	BuildGraph(ctx context.Context, sources []domain.SourceFile, view FileView) (map[string]*domain.ModuleNode, error)

	// ProcessSCC analyzes one stale SCC and returns its serializable
	// result. A *domain.BlockerError is a legitimate structured outcome,
	// any other error is a bug in the engine.
	ProcessSCC(ctx context.Context, scc domain.SCC) (json.RawMessage, error)

	// Update applies a changed/removed file set to the in-memory
	// fine-grained graph and returns the resulting diagnostics.
	Update(ctx context.Context, changed, removed []domain.SourceFile) ([]string, error)
}
