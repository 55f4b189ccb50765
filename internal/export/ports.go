package export

import (
	"context"

	"conti/internal/core"
)

// SnapshotExporter is the outbound port for pushing frozen monthly
// statements to an external destination.
type SnapshotExporter interface {
	// ExportSnapshot appends one statement and returns a destination
	// reference (row range, synthetic id).
	ExportSnapshot(ctx context.Context, stmt *core.Statement) (rowRef string, err error)
}
