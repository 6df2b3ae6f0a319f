package lifecycle

import (
	"fmt"

	"github.com/venusplus/vpls/internal/objid"
)

// ValidateQueryRange reports whether [first, first+count) lies within
// pool's query range: count == 0, or first+count <= pool.query_count,
// with the addition computed at widened precision so a first/count pair
// near the uint32 maximum cannot wrap around and falsely validate
// (spec.md §4.2, "Query pools").
func (t *Tracker) ValidateQueryRange(pool objid.QueryPoolHandle, first, count uint32) (bool, error) {
	qp, err := t.table.QueryPools.Get(pool)
	if err != nil {
		return false, fmt.Errorf("lifecycle: validate query range: %w", err)
	}
	if count == 0 {
		return true, nil
	}
	end := uint64(first) + uint64(count)
	return end <= uint64(qp.QueryCount), nil
}
