package handlers

import (
	"strings"

	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/models"
	"gorm.io/gorm"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// isProjectMember reports whether the user owns the project or holds a
// membership in it. Used by the creation/read flows; destructive operations
// go through the authorization gate instead.
func isProjectMember(db *gorm.DB, userID, projectID uuid.UUID) bool {
	var project models.Project
	if err := db.First(&project, "id = ?", projectID).Error; err != nil {
		return false
	}
	if project.OwnerID == userID {
		return true
	}

	var count int64
	db.Model(&models.Membership{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count)
	return count > 0
}

// isProjectManager reports whether the user may administer the project:
// the owner, or a member with an elevated role.
func isProjectManager(db *gorm.DB, userID, projectID uuid.UUID) bool {
	var project models.Project
	if err := db.First(&project, "id = ?", projectID).Error; err != nil {
		return false
	}
	if project.OwnerID == userID {
		return true
	}

	var membership models.Membership
	if err := db.First(&membership, "project_id = ? AND user_id = ?", projectID, userID).Error; err != nil {
		return false
	}
	switch strings.ToLower(string(membership.Role)) {
	case "owner", "admin":
		return true
	default:
		return false
	}
}
