package models

import (
	"time"

	"github.com/google/uuid"
)

// ShareLink is a public, token-addressed link to a single file.
type ShareLink struct {
	BaseModel
	FileID      uuid.UUID  `json:"fileID" gorm:"type:uuid;not null;index"`
	CreatedByID uuid.UUID  `json:"createdByID" gorm:"type:uuid;not null;index"`
	Token       string     `json:"token" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`

	File      File `json:"file,omitempty" gorm:"foreignKey:FileID;references:ID"`
	CreatedBy User `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID;references:ID"`
}

func (ShareLink) TableName() string {
	return "share_links"
}
