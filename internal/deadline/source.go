package deadline

import (
	"context"

	"github.com/linnemanlabs/plazos/internal/claim"
	"github.com/linnemanlabs/plazos/internal/policy"
)

// Source loads the entities in scope for a reconciliation pass. Claims and
// coverages are read-only inputs to the engine; the persistence layer owns
// them.
type Source interface {
	// OpenClaims returns every claim not in a terminal state.
	OpenClaims(ctx context.Context) ([]*claim.Claim, error)

	// OpenCoverages returns every coverage window currently OPEN.
	OpenCoverages(ctx context.Context) ([]*policy.Coverage, error)
}
