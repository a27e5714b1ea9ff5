package handlers

import (
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/middleware"
	"github.com/teamvault/backend/internal/models"
	"github.com/teamvault/backend/internal/services"
	"github.com/teamvault/backend/pkg/utils"
	"gorm.io/gorm"
)

type FoldersHandler struct {
	DB       *gorm.DB
	Deletion *services.DeletionService
}

func NewFoldersHandler(db *gorm.DB, deletion *services.DeletionService) *FoldersHandler {
	return &FoldersHandler{DB: db, Deletion: deletion}
}

type createFolderRequest struct {
	Name      string  `json:"name"`
	ProjectID string  `json:"projectID"`
	ParentID  *string `json:"parentID"`
}

func (r createFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.ProjectID, validation.Required),
	)
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)

	if err := req.Validate(); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	projectID, err := parseUUID(req.ProjectID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid projectID")
	}
	if !isProjectMember(h.DB, currentUser.ID, projectID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	var parentID *uuid.UUID
	if req.ParentID != nil && strings.TrimSpace(*req.ParentID) != "" {
		parsed, parseErr := parseUUID(*req.ParentID)
		if parseErr != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
		}

		var parent models.Folder
		if err := h.DB.First(&parent, "id = ?", parsed).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusNotFound, "parent folder not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading parent folder")
		}
		if parent.ProjectID != projectID {
			return utils.Error(c, fiber.StatusBadRequest, "parent folder belongs to another project")
		}
		parentID = &parsed
	}

	folder := models.Folder{
		Name:      req.Name,
		ProjectID: projectID,
		ParentID:  parentID,
		CreatorID: currentUser.ID,
	}
	if err := h.DB.Create(&folder).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating folder")
	}

	return utils.Success(c, fiber.StatusCreated, folder)
}

func (h *FoldersHandler) Children(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var folder models.Folder
	if err := h.DB.First(&folder, "id = ?", folderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
	}

	if !isProjectMember(h.DB, currentUser.ID, folder.ProjectID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	var subfolders []models.Folder
	if err := h.DB.Where("parent_id = ?", folder.ID).Order("name ASC").Find(&subfolders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing subfolders")
	}

	var files []models.File
	if err := h.DB.Where("folder_id = ?", folder.ID).Order("name ASC").Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"folders": subfolders,
		"files":   files,
	})
}

// Delete removes a folder subtree. A non-empty folder requires ?force=true;
// without it the request is rejected before either store is touched.
func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	// Unparsable force values count as false: rejecting a non-empty folder
	// is the safer default.
	force, err := strconv.ParseBool(c.Query("force", "false"))
	if err != nil {
		force = false
	}

	outcome := h.Deletion.DeleteFolder(c.Context(), currentUser.ID, folderID, force)

	switch outcome.Status {
	case services.StatusDone:
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"deletedFilesCount":        outcome.DeletedFiles,
			"deletedSubfoldersCount":   outcome.DeletedSubfolders,
			"storeDeletedObjectsCount": outcome.StoreObjectsDeleted,
			"warnings":                 outcome.Warnings,
		})
	case services.StatusNotFound:
		return utils.Error(c, fiber.StatusNotFound, "folder not found")
	case services.StatusDenied:
		return utils.Error(c, fiber.StatusForbidden, outcome.Reason)
	case services.StatusRejectedNonEmpty:
		return utils.ErrorWithDetails(c, fiber.StatusBadRequest, "folder is not empty", fiber.Map{
			"filesCount":      outcome.FilesCount,
			"subfoldersCount": outcome.SubfoldersCount,
		})
	case services.StatusStorageAborted:
		return utils.ErrorWithDetails(c, fiber.StatusInternalServerError, "storage delete failed", fiber.Map{
			"failedKeys": outcome.FailedKeys,
		})
	case services.StatusInconsistent:
		return utils.ErrorWithDetails(c, fiber.StatusInternalServerError, "inconsistent-state", fiber.Map{
			"remediation": "operator intervention required",
		})
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting folder")
	}
}
