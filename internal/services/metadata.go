package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/models"
	"github.com/teamvault/backend/pkg/logger"
	"gorm.io/gorm"
)

// MetadataResult reports one metadata batch deletion. Critical marks a
// partial deletion that happened outside a transaction boundary: some rows
// are gone, some remain, and the store payloads were already removed. That
// is the one state this system cannot self-heal.
type MetadataResult struct {
	FilesDeleted   int64
	FoldersDeleted int64
	GrantsDeleted  int64
	LinksDeleted   int64
	Critical       bool
	Err            error
}

func (r MetadataResult) Failed() bool {
	return r.Err != nil
}

// MetadataExecutor removes file and folder rows together with their
// dependent access-grant and share-link rows. Deletes affecting zero rows
// are successes: a concurrent request may already have removed them.
type MetadataExecutor struct {
	DB *gorm.DB
}

func NewMetadataExecutor(db *gorm.DB) *MetadataExecutor {
	return &MetadataExecutor{DB: db}
}

// DeleteBatch removes the exact given sets inside one transaction:
// dependents first, then files, then folders. If the transaction mechanism
// is unavailable it falls back to sequential per-kind bulk deletes, where a
// late failure after an earlier commit raises the critical condition.
func (e *MetadataExecutor) DeleteBatch(ctx context.Context, fileIDs, folderIDs []uuid.UUID) MetadataResult {
	var result MetadataResult

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteAllKinds(tx, fileIDs, folderIDs, &result)
	})
	if err == nil {
		return result
	}

	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return e.deleteSequential(ctx, fileIDs, folderIDs)
	}

	return MetadataResult{Err: err}
}

func deleteAllKinds(tx *gorm.DB, fileIDs, folderIDs []uuid.UUID, result *MetadataResult) error {
	if len(fileIDs) > 0 {
		res := tx.Where("file_id IN ?", fileIDs).Delete(&models.AccessGrant{})
		if res.Error != nil {
			return res.Error
		}
		result.GrantsDeleted = res.RowsAffected

		res = tx.Where("file_id IN ?", fileIDs).Delete(&models.ShareLink{})
		if res.Error != nil {
			return res.Error
		}
		result.LinksDeleted = res.RowsAffected

		res = tx.Where("id IN ?", fileIDs).Delete(&models.File{})
		if res.Error != nil {
			return res.Error
		}
		result.FilesDeleted = res.RowsAffected
	}

	if len(folderIDs) > 0 {
		res := tx.Where("id IN ?", folderIDs).Delete(&models.Folder{})
		if res.Error != nil {
			return res.Error
		}
		result.FoldersDeleted = res.RowsAffected
	}

	return nil
}

// deleteSequential is the non-transactional fallback. Each statement commits
// on its own, so a failure after the first success leaves the batch half
// applied; that is flagged Critical for operator remediation rather than
// retried, because the store payloads are already gone.
func (e *MetadataExecutor) deleteSequential(ctx context.Context, fileIDs, folderIDs []uuid.UUID) MetadataResult {
	var result MetadataResult
	committed := false

	steps := []func(db *gorm.DB) *gorm.DB{
		func(db *gorm.DB) *gorm.DB {
			if len(fileIDs) == 0 {
				return nil
			}
			return db.Where("file_id IN ?", fileIDs).Delete(&models.AccessGrant{})
		},
		func(db *gorm.DB) *gorm.DB {
			if len(fileIDs) == 0 {
				return nil
			}
			return db.Where("file_id IN ?", fileIDs).Delete(&models.ShareLink{})
		},
		func(db *gorm.DB) *gorm.DB {
			if len(fileIDs) == 0 {
				return nil
			}
			return db.Where("id IN ?", fileIDs).Delete(&models.File{})
		},
		func(db *gorm.DB) *gorm.DB {
			if len(folderIDs) == 0 {
				return nil
			}
			return db.Where("id IN ?", folderIDs).Delete(&models.Folder{})
		},
	}
	collect := []*int64{&result.GrantsDeleted, &result.LinksDeleted, &result.FilesDeleted, &result.FoldersDeleted}

	for i, step := range steps {
		res := step(e.DB.WithContext(ctx))
		if res == nil {
			continue
		}
		if res.Error != nil {
			result.Err = res.Error
			result.Critical = committed
			if result.Critical {
				logger.Error("metadata_partial_delete", res.Error, map[string]interface{}{
					"files":   len(fileIDs),
					"folders": len(folderIDs),
					"step":    i,
				})
			}
			return result
		}
		*collect[i] = res.RowsAffected
		committed = true
	}

	return result
}
