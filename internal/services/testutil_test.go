package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/database"
	"github.com/teamvault/backend/internal/models"
	"github.com/teamvault/backend/internal/storage"
	"github.com/teamvault/backend/pkg/logger"
	"gorm.io/gorm"
)

const testBucket = "teamvault"
const testEndpoint = "localhost:9000"

var testSetupOnce sync.Once

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}

	return db
}

// stubRemover is an in-memory ObjectRemover. Keys in failures fail that many
// attempts before succeeding; keys in missing report ErrObjectMissing.
type stubRemover struct {
	mu       sync.Mutex
	removed  []string
	failures map[string]int
	missing  map[string]bool
}

func newStubRemover() *stubRemover {
	return &stubRemover{
		failures: map[string]int{},
		missing:  map[string]bool{},
	}
}

func (s *stubRemover) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.missing[key] {
		return storage.ErrObjectMissing
	}
	if s.failures[key] > 0 {
		s.failures[key]--
		return errors.New("store unavailable")
	}
	s.removed = append(s.removed, key)
	return nil
}

func newTestDeletionService(db *gorm.DB, store *stubRemover) *DeletionService {
	return NewDeletionService(
		db,
		NewAuthzService(db),
		NewTreeCollector(db, 50),
		storage.NewKeyResolver(testBucket, testEndpoint),
		storage.NewBatchDeleter(store, 5*time.Second),
		NewMetadataExecutor(db),
	)
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("failed creating %T: %v", value, err)
	}
}

func newUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.UserRoleUser,
	}
	mustCreate(t, db, user)
	return user
}

func newProject(t *testing.T, db *gorm.DB, owner *models.User) *models.Project {
	t.Helper()
	project := &models.Project{Name: "proj", OwnerID: owner.ID}
	mustCreate(t, db, project)
	return project
}

func newFolder(t *testing.T, db *gorm.DB, project *models.Project, creator *models.User, name string, parent *models.Folder) *models.Folder {
	t.Helper()
	folder := &models.Folder{Name: name, ProjectID: project.ID, CreatorID: creator.ID}
	if parent != nil {
		folder.ParentID = &parent.ID
	}
	mustCreate(t, db, folder)
	return folder
}

func newFile(t *testing.T, db *gorm.DB, project *models.Project, uploader *models.User, folder *models.Folder, name string) (*models.File, string) {
	t.Helper()
	key := fmt.Sprintf("%s/%s/%s", project.ID.String(), uuid.New().String(), name)
	file := &models.File{
		Name:           name,
		MimeType:       "application/octet-stream",
		Size:           1,
		ProjectID:      project.ID,
		UploaderID:     uploader.ID,
		StorageLocator: fmt.Sprintf("http://%s/%s/%s", testEndpoint, testBucket, key),
	}
	if folder != nil {
		file.FolderID = &folder.ID
	}
	mustCreate(t, db, file)
	return file, key
}
