package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Merger absorbs duplicate company rows into a surviving one. It is the
// compensating mechanism for the engine's accepted cross-run race: two
// near-simultaneous first observations of the same company can create two
// rows, reconciled later by an operator-triggered merge.
type Merger struct {
	store Store
}

// NewMerger creates a merge operator.
func NewMerger(store Store) *Merger {
	return &Merger{store: store}
}

// MergePreview describes the effect of a merge without performing it.
type MergePreview struct {
	EventsTransferred int64 `json:"events_to_transfer"`
	TotalEventsAfter  int64 `json:"total_events_after_merge"`
}

// Merge re-points every funding event owned by mergeIDs onto keepID, widens
// keepID's seen span across all original spans, and deletes the merged rows,
// as a single atomic transaction. On failure the original state is preserved.
func (m *Merger) Merge(ctx context.Context, keepID int64, mergeIDs []int64) error {
	if len(mergeIDs) == 0 {
		return eris.New("merge: no companies to merge")
	}
	for _, id := range mergeIDs {
		if id == keepID {
			return eris.Errorf("merge: company %d cannot be merged into itself", keepID)
		}
	}

	keep, err := m.store.GetCompany(ctx, keepID)
	if err != nil {
		return err
	}
	if keep == nil {
		return eris.Errorf("merge: company %d not found", keepID)
	}

	if err := m.store.MergeCompanies(ctx, keepID, mergeIDs); err != nil {
		return err
	}

	zap.L().Info("merge: absorbed duplicate companies",
		zap.Int64("keep_id", keepID),
		zap.Int64s("merged_ids", mergeIDs),
	)
	return nil
}

// Preview computes the event movement a merge would cause. Performs no
// mutation.
func (m *Merger) Preview(ctx context.Context, keepID int64, mergeIDs []int64) (*MergePreview, error) {
	keepCount, err := m.store.CountFundingEvents(ctx, keepID)
	if err != nil {
		return nil, err
	}

	var transferred int64
	for _, id := range mergeIDs {
		n, err := m.store.CountFundingEvents(ctx, id)
		if err != nil {
			return nil, err
		}
		transferred += n
	}

	return &MergePreview{
		EventsTransferred: transferred,
		TotalEventsAfter:  keepCount + transferred,
	}, nil
}
