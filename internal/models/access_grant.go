package models

import (
	"time"

	"github.com/google/uuid"
)

type GrantPermission string

const (
	GrantPermissionView     GrantPermission = "view"
	GrantPermissionDownload GrantPermission = "download"
	GrantPermissionEdit     GrantPermission = "edit"
)

// AccessGrant shares a single file with a single user. Grants are removed
// as a side effect of their file's deletion, never independently by the
// deletion engine.
type AccessGrant struct {
	BaseModel
	FileID      uuid.UUID       `json:"fileID" gorm:"type:uuid;not null;index"`
	GrantedByID uuid.UUID       `json:"grantedByID" gorm:"type:uuid;not null;index"`
	GrantedToID uuid.UUID       `json:"grantedToID" gorm:"type:uuid;not null;index"`
	Permission  GrantPermission `json:"permission" gorm:"type:varchar(20);not null;default:'view'"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`

	File      File `json:"file,omitempty" gorm:"foreignKey:FileID;references:ID"`
	GrantedBy User `json:"grantedBy,omitempty" gorm:"foreignKey:GrantedByID;references:ID"`
	GrantedTo User `json:"grantedTo,omitempty" gorm:"foreignKey:GrantedToID;references:ID"`
}

func (AccessGrant) TableName() string {
	return "access_grants"
}
