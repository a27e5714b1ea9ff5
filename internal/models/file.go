package models

import "github.com/google/uuid"

type FileVisibility string

const (
	FileVisibilityPrivate FileVisibility = "private"
	FileVisibilityProject FileVisibility = "project"
	FileVisibilityPublic  FileVisibility = "public"
)

// File belongs to exactly one project and optionally to one folder
// (nil FolderID = project root). StorageLocator is the URL-like string
// describing where the payload lives; it may or may not be resolvable to
// an object-store key.
type File struct {
	BaseModel
	Name           string         `json:"name" gorm:"type:varchar(255);not null"`
	MimeType       string         `json:"mimeType" gorm:"type:varchar(255);not null"`
	Size           int64          `json:"size" gorm:"not null;default:0"`
	ProjectID      uuid.UUID      `json:"projectID" gorm:"type:uuid;not null;index"`
	FolderID       *uuid.UUID     `json:"folderID,omitempty" gorm:"type:uuid;index"`
	UploaderID     uuid.UUID      `json:"uploaderID" gorm:"type:uuid;not null;index"`
	StorageLocator string         `json:"storageLocator" gorm:"type:text;not null"`
	Visibility     FileVisibility `json:"visibility" gorm:"type:varchar(20);not null;default:'private'"`
	Starred        bool           `json:"starred" gorm:"not null;default:false"`

	Folder   *Folder       `json:"folder,omitempty" gorm:"foreignKey:FolderID"`
	Uploader User          `json:"uploader,omitempty" gorm:"foreignKey:UploaderID;references:ID"`
	Grants   []AccessGrant `json:"-" gorm:"foreignKey:FileID"`
	Links    []ShareLink   `json:"-" gorm:"foreignKey:FileID"`
}
