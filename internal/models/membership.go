package models

import "github.com/google/uuid"

type MembershipRole string

const (
	MembershipRoleOwner  MembershipRole = "owner"
	MembershipRoleAdmin  MembershipRole = "admin"
	MembershipRoleMember MembershipRole = "member"
	MembershipRoleViewer MembershipRole = "viewer"
)

// Membership binds a user to a project. Permissions holds the raw grant
// exactly as it was written by whichever client created it: a JSON array
// (`["delete","edit"]`), a JSON object with boolean fields
// (`{"delete":true}`), a JSON string, or a bare comma-separated string.
// The authorization gate normalizes all of these into one capability set.
type Membership struct {
	BaseModel
	UserID      uuid.UUID      `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_project"`
	ProjectID   uuid.UUID      `json:"projectID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_project"`
	Role        MembershipRole `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	Permissions string         `json:"permissions" gorm:"type:text"`

	User    User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Project Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (Membership) TableName() string {
	return "memberships"
}
