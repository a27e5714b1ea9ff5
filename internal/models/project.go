package models

import "github.com/google/uuid"

type Project struct {
	BaseModel
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	OwnerID     uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index"`

	Owner   User         `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Members []Membership `json:"members,omitempty" gorm:"foreignKey:ProjectID"`
	Folders []Folder     `json:"-" gorm:"foreignKey:ProjectID"`
	Files   []File       `json:"-" gorm:"foreignKey:ProjectID"`
}
