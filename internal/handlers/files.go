package handlers

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/middleware"
	"github.com/teamvault/backend/internal/models"
	"github.com/teamvault/backend/internal/services"
	"github.com/teamvault/backend/internal/storage"
	"github.com/teamvault/backend/pkg/logger"
	"github.com/teamvault/backend/pkg/utils"
	"gorm.io/gorm"
)

type FilesHandler struct {
	DB       *gorm.DB
	Storage  storage.ObjectStore
	Deletion *services.DeletionService
}

func NewFilesHandler(db *gorm.DB, store storage.ObjectStore, deletion *services.DeletionService) *FilesHandler {
	return &FilesHandler{DB: db, Storage: store, Deletion: deletion}
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	projectID, err := parseUUID(c.FormValue("projectID"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid projectID")
	}
	if !isProjectMember(h.DB, currentUser.ID, projectID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	var folderID *uuid.UUID
	folderIDRaw := strings.TrimSpace(c.FormValue("folderID"))
	if folderIDRaw != "" {
		parsed, parseErr := parseUUID(folderIDRaw)
		if parseErr != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid folderID")
		}

		var folder models.Folder
		if err := h.DB.First(&folder, "id = ?", parsed).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusNotFound, "folder not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
		}
		if folder.ProjectID != projectID {
			return utils.Error(c, fiber.StatusBadRequest, "folder belongs to another project")
		}
		folderID = &parsed
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%s/%s", projectID.String(), uuid.New().String(), filename)
	if err := h.Storage.Upload(c.Context(), objectName, stream, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed uploading file")
	}

	entry := models.File{
		Name:           filename,
		MimeType:       contentType,
		Size:           fileHeader.Size,
		ProjectID:      projectID,
		FolderID:       folderID,
		UploaderID:     currentUser.ID,
		StorageLocator: h.Storage.ObjectURL(objectName),
		Visibility:     models.FileVisibilityPrivate,
	}

	if err := h.DB.Create(&entry).Error; err != nil {
		// Best effort: the row failed, so the fresh payload is orphaned.
		_ = h.Storage.Remove(c.Context(), objectName)
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
		"file_id":    entry.ID.String(),
		"file_name":  filename,
		"file_size":  fileHeader.Size,
		"project_id": projectID.String(),
		"locator":    entry.StorageLocator,
	})

	return utils.Success(c, fiber.StatusCreated, entry)
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var file models.File
	if err := h.DB.Preload("Uploader").First(&file, "id = ?", fileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	if !h.canRead(currentUser.ID, &file) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) ListProjectRoot(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	projectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid project id")
	}
	if !isProjectMember(h.DB, currentUser.ID, projectID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	var folders []models.Folder
	if err := h.DB.Where("project_id = ? AND parent_id IS NULL", projectID).Order("name ASC").Find(&folders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing folders")
	}

	var files []models.File
	if err := h.DB.Where("project_id = ? AND folder_id IS NULL", projectID).Order("name ASC").Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"folders": folders,
		"files":   files,
	})
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	if !h.canRead(currentUser.ID, &file) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	resolver := storage.NewKeyResolver(h.Storage.Bucket(), h.Storage.Endpoints()...)
	res := resolver.Resolve(file.StorageLocator)
	if !res.Resolvable {
		return utils.Error(c, fiber.StatusBadGateway, "file payload is not served from this store")
	}

	obj, err := h.Storage.Download(c.Context(), res.Key)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed downloading file")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading object metadata")
	}

	contentType := stat.ContentType
	if contentType == "" {
		contentType = file.MimeType
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.SendStream(obj, int(stat.Size))
}

// DownloadURL hands out a short-lived presigned link so large payloads can
// be fetched straight from the store instead of streaming through the API.
func (h *FilesHandler) DownloadURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	if !h.canRead(currentUser.ID, &file) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	resolver := storage.NewKeyResolver(h.Storage.Bucket(), h.Storage.Endpoints()...)
	res := resolver.Resolve(file.StorageLocator)
	if !res.Resolvable {
		return utils.Error(c, fiber.StatusBadGateway, "file payload is not served from this store")
	}

	url, err := h.Storage.PresignedGetURL(c.Context(), res.Key, 15*time.Minute)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating download url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url, "expiresIn": int((15 * time.Minute).Seconds())})
}

// Delete removes a single file: payload first, then metadata. A failed
// storage delete aborts before metadata is touched, so the caller can
// safely retry the whole request.
func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	outcome := h.Deletion.DeleteFile(c.Context(), currentUser.ID, fileID)

	switch outcome.Status {
	case services.StatusDone:
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"message":                  "file deleted",
			"storeDeletedObjectsCount": outcome.StoreObjectsDeleted,
			"warnings":                 outcome.Warnings,
		})
	case services.StatusNotFound:
		return utils.Error(c, fiber.StatusNotFound, "file not found")
	case services.StatusDenied:
		return utils.Error(c, fiber.StatusForbidden, outcome.Reason)
	case services.StatusStorageAborted:
		return utils.ErrorWithDetails(c, fiber.StatusInternalServerError, "storage delete failed", fiber.Map{
			"failedKeys": outcome.FailedKeys,
		})
	case services.StatusInconsistent:
		return utils.ErrorWithDetails(c, fiber.StatusInternalServerError, "inconsistent-state", fiber.Map{
			"remediation": "operator intervention required",
		})
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file")
	}
}

// canRead: uploader, public file, project visibility for members, or an
// unexpired grant.
func (h *FilesHandler) canRead(userID uuid.UUID, file *models.File) bool {
	if file.UploaderID == userID {
		return true
	}
	if file.Visibility == models.FileVisibilityPublic {
		return true
	}
	if isProjectMember(h.DB, userID, file.ProjectID) {
		return true
	}

	var count int64
	h.DB.Model(&models.AccessGrant{}).
		Where("file_id = ? AND granted_to_id = ?", file.ID, userID).
		Where("expires_at IS NULL OR expires_at > NOW()").
		Count(&count)
	return count > 0
}
