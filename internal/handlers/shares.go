package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/middleware"
	"github.com/teamvault/backend/internal/models"
	"github.com/teamvault/backend/pkg/logger"
	"github.com/teamvault/backend/pkg/utils"
	"gorm.io/gorm"
)

type SharesHandler struct {
	DB *gorm.DB
}

func NewSharesHandler(db *gorm.DB) *SharesHandler {
	return &SharesHandler{DB: db}
}

type createGrantRequest struct {
	UserID     string     `json:"userID"`
	Permission string     `json:"permission"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

func (r createGrantRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Permission, validation.Required, validation.In("view", "download", "edit")),
	)
}

func (h *SharesHandler) CreateGrant(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadOwnedFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	var req createGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	granteeID, err := parseUUID(req.UserID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid userID")
	}

	var grantee models.User
	if err := h.DB.First(&grantee, "id = ?", granteeID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	grant := models.AccessGrant{
		FileID:      file.ID,
		GrantedByID: currentUser.ID,
		GrantedToID: grantee.ID,
		Permission:  models.GrantPermission(req.Permission),
		ExpiresAt:   req.ExpiresAt,
	}
	if err := h.DB.Create(&grant).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating grant")
	}

	logger.InfoWithUser(currentUser.ID.String(), "grant_created", map[string]interface{}{
		"file_id":    file.ID.String(),
		"grantee_id": grantee.ID.String(),
		"permission": req.Permission,
	})

	return utils.Success(c, fiber.StatusCreated, grant)
}

func (h *SharesHandler) ListGrants(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadOwnedFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	var grants []models.AccessGrant
	if err := h.DB.Where("file_id = ?", file.ID).Order("created_at DESC").Find(&grants).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing grants")
	}
	return utils.Success(c, fiber.StatusOK, grants)
}

type createLinkRequest struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (h *SharesHandler) CreateLink(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadOwnedFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	var req createLinkRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	token, err := generateLinkToken()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	link := models.ShareLink{
		FileID:      file.ID,
		CreatedByID: currentUser.ID,
		Token:       token,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := h.DB.Create(&link).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating share link")
	}

	logger.InfoWithUser(currentUser.ID.String(), "share_link_created", map[string]interface{}{
		"file_id": file.ID.String(),
		"link_id": link.ID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, link)
}

func (h *SharesHandler) ListLinks(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadOwnedFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	var links []models.ShareLink
	if err := h.DB.Where("file_id = ?", file.ID).Order("created_at DESC").Find(&links).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing share links")
	}
	return utils.Success(c, fiber.StatusOK, links)
}

// ResolveLink serves a share link by its token without requiring
// authentication. An unknown, deleted or expired token all answer the same
// not-found so the token space cannot be enumerated.
func (h *SharesHandler) ResolveLink(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	if token == "" {
		return utils.Error(c, fiber.StatusNotFound, "share link not found")
	}

	var link models.ShareLink
	if err := h.DB.Preload("File").First(&link, "token = ?", token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "share link not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading share link")
	}
	if link.ExpiresAt != nil && link.ExpiresAt.Before(time.Now()) {
		return utils.Error(c, fiber.StatusNotFound, "share link not found")
	}

	details := map[string]interface{}{
		"link_id": link.ID.String(),
		"file_id": link.FileID.String(),
	}
	if user := middleware.GetCurrentUser(c); user != nil {
		logger.InfoWithUser(user.ID.String(), "share_link_accessed", details)
	} else {
		logger.Info("share_link_accessed", details)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"file":      link.File,
		"expiresAt": link.ExpiresAt,
	})
}

// loadOwnedFile loads the :id file and checks the caller may manage its
// shares (uploader or project manager). Returns nil plus an HTTP status
// and message when the caller may not proceed.
func (h *SharesHandler) loadOwnedFile(c *fiber.Ctx, userID uuid.UUID) (*models.File, int, string) {
	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, fiber.StatusBadRequest, "invalid file id"
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.StatusNotFound, "file not found"
		}
		return nil, fiber.StatusInternalServerError, "failed loading file"
	}

	if file.UploaderID != userID && !isProjectManager(h.DB, userID, file.ProjectID) {
		return nil, fiber.StatusForbidden, "access denied"
	}
	return &file, fiber.StatusOK, ""
}

func generateLinkToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
