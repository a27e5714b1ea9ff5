package handlers

import (
	"encoding/json"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/teamvault/backend/internal/middleware"
	"github.com/teamvault/backend/internal/models"
	"github.com/teamvault/backend/pkg/logger"
	"github.com/teamvault/backend/pkg/utils"
	"gorm.io/gorm"
)

type ProjectsHandler struct {
	DB *gorm.DB
}

func NewProjectsHandler(db *gorm.DB) *ProjectsHandler {
	return &ProjectsHandler{DB: db}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r createProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
	)
}

func (h *ProjectsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)

	if err := req.Validate(); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     currentUser.ID,
	}
	if err := h.DB.Create(&project).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating project")
	}

	logger.InfoWithUser(currentUser.ID.String(), "project_created", map[string]interface{}{
		"project_id": project.ID.String(),
		"name":       project.Name,
	})

	return utils.Success(c, fiber.StatusCreated, project)
}

func (h *ProjectsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var projects []models.Project
	err := h.DB.
		Distinct("projects.*").
		Joins("LEFT JOIN memberships ON memberships.project_id = projects.id").
		Where("projects.owner_id = ? OR memberships.user_id = ?", currentUser.ID, currentUser.ID).
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing projects")
	}

	return utils.Success(c, fiber.StatusOK, projects)
}

func (h *ProjectsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	projectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid project id")
	}

	var project models.Project
	if err := h.DB.Preload("Members").First(&project, "id = ?", projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "project not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading project")
	}

	if !isProjectMember(h.DB, currentUser.ID, project.ID) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	return utils.Success(c, fiber.StatusOK, project)
}

type addMemberRequest struct {
	UserID string `json:"userID"`
	Role   string `json:"role"`
	// Permissions is kept raw: clients send a JSON array, an object with
	// boolean fields, or a plain string. The authorization gate normalizes
	// the shape at read time.
	Permissions json.RawMessage `json:"permissions"`
}

func (r addMemberRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Role, validation.In("owner", "admin", "member", "viewer")),
	)
}

func (h *ProjectsHandler) AddMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	projectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid project id")
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "project not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading project")
	}

	if !isProjectManager(h.DB, currentUser.ID, project.ID) {
		return utils.Error(c, fiber.StatusForbidden, "only project managers can add members")
	}

	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	memberID, err := parseUUID(req.UserID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid userID")
	}

	var member models.User
	if err := h.DB.First(&member, "id = ?", memberID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	role := models.MembershipRole(req.Role)
	if req.Role == "" {
		role = models.MembershipRoleMember
	}

	membership := models.Membership{
		UserID:      member.ID,
		ProjectID:   project.ID,
		Role:        role,
		Permissions: string(req.Permissions),
	}
	if err := h.DB.Create(&membership).Error; err != nil {
		return utils.Error(c, fiber.StatusConflict, "user is already a member")
	}

	logger.InfoWithUser(currentUser.ID.String(), "member_added", map[string]interface{}{
		"project_id": project.ID.String(),
		"member_id":  member.ID.String(),
		"role":       string(role),
	})

	return utils.Success(c, fiber.StatusCreated, membership)
}

func (h *ProjectsHandler) RemoveMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	projectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid project id")
	}
	memberID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if !isProjectManager(h.DB, currentUser.ID, projectID) {
		return utils.Error(c, fiber.StatusForbidden, "only project managers can remove members")
	}

	res := h.DB.Where("project_id = ? AND user_id = ?", projectID, memberID).Delete(&models.Membership{})
	if res.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed removing member")
	}
	if res.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "membership not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "member removed"})
}
