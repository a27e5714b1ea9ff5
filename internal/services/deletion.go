package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/metrics"
	"github.com/teamvault/backend/internal/models"
	"github.com/teamvault/backend/internal/storage"
	"github.com/teamvault/backend/pkg/logger"
	"gorm.io/gorm"
)

// DeletionStatus is the terminal state of one deletion request.
type DeletionStatus int

const (
	// StatusDone: storage and metadata both removed.
	StatusDone DeletionStatus = iota
	// StatusNotFound: the target id does not exist.
	StatusNotFound
	// StatusDenied: the authorization gate refused the caller.
	StatusDenied
	// StatusRejectedNonEmpty: the folder has contents and force was not set.
	// Neither store was touched.
	StatusRejectedNonEmpty
	// StatusStorageAborted: at least one object-store key failed after its
	// retry. Metadata was never touched, so the whole operation is safe to
	// retry later.
	StatusStorageAborted
	// StatusInconsistent: store payloads are gone but some metadata rows
	// remain. There is no automatic compensation; an operator must
	// reconcile.
	StatusInconsistent
	// StatusFailed: an internal error before anything was mutated.
	StatusFailed
)

// FileDeletion is the outcome of a single-file delete.
type FileDeletion struct {
	Status              DeletionStatus
	Reason              string
	Warnings            []string
	FailedKeys          []storage.KeyError
	StoreObjectsDeleted int
	Err                 error
}

// FolderDeletion is the outcome of a folder-subtree delete. FilesCount and
// SubfoldersCount are populated on rejection; the Deleted* fields on
// completion.
type FolderDeletion struct {
	Status              DeletionStatus
	Reason              string
	FilesCount          int
	SubfoldersCount     int
	DeletedFiles        int
	DeletedSubfolders   int
	StoreObjectsDeleted int
	Warnings            []string
	FailedKeys          []storage.KeyError
	Err                 error
}

// MetadataDeleter is the slice of the metadata executor the orchestrator
// consumes.
type MetadataDeleter interface {
	DeleteBatch(ctx context.Context, fileIDs, folderIDs []uuid.UUID) MetadataResult
}

// DeletionService composes gate, tree collector, key resolver, store deleter
// and metadata executor into the end-to-end flow. The ordering contract is
// fixed: object-store deletion strictly before metadata deletion, because
// the store is the side that cannot be undone. There is no cross-request
// locking; every step tolerates a concurrent delete of the same targets.
type DeletionService struct {
	DB       *gorm.DB
	Authz    *AuthzService
	Tree     *TreeCollector
	Resolver *storage.KeyResolver
	Deleter  *storage.BatchDeleter
	Metadata MetadataDeleter
}

func NewDeletionService(db *gorm.DB, authz *AuthzService, tree *TreeCollector, resolver *storage.KeyResolver, deleter *storage.BatchDeleter, metadata MetadataDeleter) *DeletionService {
	return &DeletionService{
		DB:       db,
		Authz:    authz,
		Tree:     tree,
		Resolver: resolver,
		Deleter:  deleter,
		Metadata: metadata,
	}
}

// DeleteFile removes one file: payload first, then its row plus dependent
// grant and link rows.
func (s *DeletionService) DeleteFile(ctx context.Context, callerID, fileID uuid.UUID) FileDeletion {
	var file models.File
	if err := s.DB.WithContext(ctx).First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FileDeletion{Status: StatusNotFound}
		}
		return FileDeletion{Status: StatusFailed, Err: err}
	}

	decision := s.Authz.CanDelete(ctx, callerID, file.ProjectID, file.UploaderID)
	if !decision.Allowed {
		return FileDeletion{Status: StatusDenied, Reason: decision.Reason}
	}

	var keys []string
	var warnings []string
	if res := s.Resolver.Resolve(file.StorageLocator); res.Resolvable {
		keys = append(keys, res.Key)
	} else {
		// Deliberate policy: a stale payload may remain in storage rather
		// than block the deletion. Surfaced as a warning, not an error.
		warnings = append(warnings, "unresolvable locator: "+file.StorageLocator)
	}

	storeResult := s.Deleter.DeleteAll(ctx, keys)
	if storeResult.Failed() {
		metrics.DeletionFailures.WithLabelValues("storage").Inc()
		return FileDeletion{
			Status:              StatusStorageAborted,
			Warnings:            warnings,
			FailedKeys:          storeResult.Errors,
			StoreObjectsDeleted: storeResult.Deleted,
		}
	}

	metaResult := s.Metadata.DeleteBatch(ctx, []uuid.UUID{file.ID}, nil)
	if metaResult.Failed() {
		return FileDeletion{
			Status:              s.metadataFailureStatus(callerID, metaResult),
			Warnings:            warnings,
			StoreObjectsDeleted: storeResult.Deleted,
			Err:                 metaResult.Err,
		}
	}

	metrics.FilesDeleted.Add(float64(metaResult.FilesDeleted))
	metrics.StoreObjectsDeleted.Add(float64(storeResult.Deleted))

	logger.InfoWithUser(callerID.String(), "file_deleted", map[string]interface{}{
		"file_id":       file.ID.String(),
		"project_id":    file.ProjectID.String(),
		"store_objects": storeResult.Deleted,
		"grants":        metaResult.GrantsDeleted,
		"links":         metaResult.LinksDeleted,
	})

	return FileDeletion{
		Status:              StatusDone,
		Warnings:            warnings,
		StoreObjectsDeleted: storeResult.Deleted,
	}
}

// DeleteFolder removes a folder subtree. A non-empty folder is rejected
// before any store is touched unless force is set.
func (s *DeletionService) DeleteFolder(ctx context.Context, callerID, folderID uuid.UUID, force bool) FolderDeletion {
	var folder models.Folder
	if err := s.DB.WithContext(ctx).First(&folder, "id = ?", folderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FolderDeletion{Status: StatusNotFound}
		}
		return FolderDeletion{Status: StatusFailed, Err: err}
	}

	decision := s.Authz.CanDelete(ctx, callerID, folder.ProjectID, folder.CreatorID)
	if !decision.Allowed {
		return FolderDeletion{Status: StatusDenied, Reason: decision.Reason}
	}

	treeIDs, err := s.Tree.Collect(ctx, folder.ID)
	if err != nil {
		return FolderDeletion{Status: StatusFailed, Err: err}
	}

	var files []models.File
	err = s.DB.WithContext(ctx).
		Select("id", "storage_locator").
		Where("folder_id IN ?", treeIDs).
		Find(&files).Error
	if err != nil {
		return FolderDeletion{Status: StatusFailed, Err: err}
	}

	subfolders := len(treeIDs) - 1
	if (subfolders > 0 || len(files) > 0) && !force {
		return FolderDeletion{
			Status:          StatusRejectedNonEmpty,
			FilesCount:      len(files),
			SubfoldersCount: subfolders,
		}
	}

	locators := make([]string, len(files))
	fileIDs := make([]uuid.UUID, len(files))
	for i, f := range files {
		locators[i] = f.StorageLocator
		fileIDs[i] = f.ID
	}

	keys, unresolvable := s.Resolver.ResolveAll(locators)
	var warnings []string
	for _, locator := range unresolvable {
		warnings = append(warnings, "unresolvable locator: "+locator)
	}

	storeResult := s.Deleter.DeleteAll(ctx, keys)
	if storeResult.Failed() {
		metrics.DeletionFailures.WithLabelValues("storage").Inc()
		return FolderDeletion{
			Status:              StatusStorageAborted,
			Warnings:            warnings,
			FailedKeys:          storeResult.Errors,
			StoreObjectsDeleted: storeResult.Deleted,
		}
	}

	metaResult := s.Metadata.DeleteBatch(ctx, fileIDs, treeIDs)
	if metaResult.Failed() {
		return FolderDeletion{
			Status:              s.metadataFailureStatus(callerID, metaResult),
			Warnings:            warnings,
			StoreObjectsDeleted: storeResult.Deleted,
			Err:                 metaResult.Err,
		}
	}

	deletedSubfolders := int(metaResult.FoldersDeleted) - 1
	if deletedSubfolders < 0 {
		deletedSubfolders = 0
	}

	metrics.FilesDeleted.Add(float64(metaResult.FilesDeleted))
	metrics.FoldersDeleted.Add(float64(metaResult.FoldersDeleted))
	metrics.StoreObjectsDeleted.Add(float64(storeResult.Deleted))

	logger.InfoWithUser(callerID.String(), "folder_deleted", map[string]interface{}{
		"folder_id":     folder.ID.String(),
		"project_id":    folder.ProjectID.String(),
		"files":         metaResult.FilesDeleted,
		"subfolders":    deletedSubfolders,
		"store_objects": storeResult.Deleted,
	})

	return FolderDeletion{
		Status:              StatusDone,
		DeletedFiles:        int(metaResult.FilesDeleted),
		DeletedSubfolders:   deletedSubfolders,
		StoreObjectsDeleted: storeResult.Deleted,
		Warnings:            warnings,
	}
}

// metadataFailureStatus maps an executor failure to a terminal state. A
// critical result means partial metadata deletion after storage already
// succeeded: the highest-severity outcome this engine can report. A plain
// failure rolled back cleanly, leaving orphaned metadata rows whose payloads
// are gone; rows survive intact so it is reported as an internal failure,
// not an inconsistency.
func (s *DeletionService) metadataFailureStatus(callerID uuid.UUID, result MetadataResult) DeletionStatus {
	if result.Critical {
		metrics.Inconsistencies.Inc()
		logger.ErrorWithUser(callerID.String(), "deletion_inconsistent", result.Err, map[string]interface{}{
			"files_deleted":   result.FilesDeleted,
			"folders_deleted": result.FoldersDeleted,
			"remediation":     "manual",
		})
		return StatusInconsistent
	}
	metrics.DeletionFailures.WithLabelValues("metadata").Inc()
	return StatusFailed
}
