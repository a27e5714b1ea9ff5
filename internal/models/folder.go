package models

import "github.com/google/uuid"

// Folder forms a tree per project. A nil ParentID means the folder sits at
// the project root. Cycle prevention is enforced by the create/move paths;
// the deletion engine assumes an acyclic tree.
type Folder struct {
	BaseModel
	Name      string     `json:"name" gorm:"type:varchar(255);not null"`
	ProjectID uuid.UUID  `json:"projectID" gorm:"type:uuid;not null;index"`
	ParentID  *uuid.UUID `json:"parentID,omitempty" gorm:"type:uuid;index"`
	CreatorID uuid.UUID  `json:"creatorID" gorm:"type:uuid;not null;index"`

	Parent   *Folder  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []Folder `json:"children,omitempty" gorm:"foreignKey:ParentID"`
	Creator  User     `json:"creator,omitempty" gorm:"foreignKey:CreatorID;references:ID"`
	Files    []File   `json:"-" gorm:"foreignKey:FolderID"`
}
