package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/models"
	"gorm.io/gorm"
)

// maxTreeBatchSize bounds the fan-out of any single frontier query
// regardless of tree width.
const maxTreeBatchSize = 50

// TreeCollector expands a folder id into the full set of descendant folder
// ids. The traversal is an iterative breadth-first walk over an explicit
// frontier, not recursion, so call-stack depth stays constant on deep
// hierarchies and each round maps onto one bounded IN query.
//
// Precondition: the folder graph is acyclic. Cycle prevention lives in the
// folder create/move paths; a cyclic graph here would not terminate.
type TreeCollector struct {
	DB        *gorm.DB
	batchSize int
}

func NewTreeCollector(db *gorm.DB, batchSize int) *TreeCollector {
	if batchSize <= 0 || batchSize > maxTreeBatchSize {
		batchSize = maxTreeBatchSize
	}
	return &TreeCollector{DB: db, batchSize: batchSize}
}

// Collect returns the root plus every folder reachable by following child
// links, in discovery order, with no duplicates. The returned slice doubles
// as the traversal arena: frontier batches are windows over it.
func (t *TreeCollector) Collect(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{rootID}
	seen := map[uuid.UUID]bool{rootID: true}

	for next := 0; next < len(ids); {
		end := next + t.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		frontier := ids[next:end]
		next = end

		var children []models.Folder
		err := t.DB.WithContext(ctx).
			Select("id").
			Where("parent_id IN ?", frontier).
			Find(&children).Error
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			if !seen[child.ID] {
				seen[child.ID] = true
				ids = append(ids, child.ID)
			}
		}
	}

	return ids, nil
}
