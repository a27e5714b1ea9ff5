package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/database"
	"github.com/teamvault/backend/internal/middleware"
	"github.com/teamvault/backend/internal/models"
	"github.com/teamvault/backend/internal/services"
	"github.com/teamvault/backend/internal/storage"
	"github.com/teamvault/backend/pkg/logger"
	"github.com/teamvault/backend/pkg/utils"
	"gorm.io/gorm"
)

const testBucket = "teamvault"
const testEndpoint = "localhost:9000"

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

func (s *stubRemover) removedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.removed)
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	store    *stubRemover
	deletion *services.DeletionService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
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

	store := newStubRemover()

	authzService := services.NewAuthzService(db)
	treeCollector := services.NewTreeCollector(db, 50)
	keyResolver := storage.NewKeyResolver(testBucket, testEndpoint)
	batchDeleter := storage.NewBatchDeleter(store, 5*time.Second)
	metadataExecutor := services.NewMetadataExecutor(db)
	deletionService := services.NewDeletionService(db, authzService, treeCollector, keyResolver, batchDeleter, metadataExecutor)

	authHandler := NewAuthHandler(db)
	projectsHandler := NewProjectsHandler(db)
	foldersHandler := NewFoldersHandler(db, deletionService)
	filesHandler := NewFilesHandler(db, nil, deletionService)
	sharesHandler := NewSharesHandler(db)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	publicRoutes := api.Group("/public", authMiddleware.OptionalAuth)
	publicRoutes.Get("/links/:token", sharesHandler.ResolveLink)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	projectRoutes := api.Group("/projects", authMiddleware.RequireAuth)
	projectRoutes.Post("/", projectsHandler.Create)
	projectRoutes.Get("/", projectsHandler.List)
	projectRoutes.Get("/:id", projectsHandler.Get)
	projectRoutes.Get("/:id/root", filesHandler.ListProjectRoot)
	projectRoutes.Post("/:id/members", projectsHandler.AddMember)
	projectRoutes.Delete("/:id/members/:userId", projectsHandler.RemoveMember)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/:id/children", foldersHandler.Children)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Get("/:id", filesHandler.Get)
	fileRoutes.Post("/:id/grants", sharesHandler.CreateGrant)
	fileRoutes.Get("/:id/grants", sharesHandler.ListGrants)
	fileRoutes.Post("/:id/links", sharesHandler.CreateLink)
	fileRoutes.Get("/:id/links", sharesHandler.ListLinks)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	return &testEnv{app: app, db: db, store: store, deletion: deletionService}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestProject(t *testing.T, db *gorm.DB, owner *models.User, name string) *models.Project {
	t.Helper()

	project := &models.Project{Name: name, OwnerID: owner.ID}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed creating test project: %v", err)
	}
	return project
}

func createTestMembership(t *testing.T, db *gorm.DB, user *models.User, project *models.Project, role models.MembershipRole, permissions string) *models.Membership {
	t.Helper()

	membership := &models.Membership{
		UserID:      user.ID,
		ProjectID:   project.ID,
		Role:        role,
		Permissions: permissions,
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed creating test membership: %v", err)
	}
	return membership
}

func createTestFolder(t *testing.T, db *gorm.DB, project *models.Project, creator *models.User, name string, parent *models.Folder) *models.Folder {
	t.Helper()

	folder := &models.Folder{
		Name:      name,
		ProjectID: project.ID,
		CreatorID: creator.ID,
	}
	if parent != nil {
		folder.ParentID = &parent.ID
	}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("failed creating test folder: %v", err)
	}
	return folder
}

// createTestFile records a file whose locator points at the test store; the
// derived object key is returned alongside.
func createTestFile(t *testing.T, db *gorm.DB, project *models.Project, uploader *models.User, folder *models.Folder, name string) (*models.File, string) {
	t.Helper()

	key := fmt.Sprintf("%s/%s/%s", project.ID.String(), uuid.New().String(), name)
	file := &models.File{
		Name:           name,
		MimeType:       "application/octet-stream",
		Size:           42,
		ProjectID:      project.ID,
		UploaderID:     uploader.ID,
		StorageLocator: fmt.Sprintf("http://%s/%s/%s", testEndpoint, testBucket, key),
	}
	if folder != nil {
		file.FolderID = &folder.ID
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("failed creating test file: %v", err)
	}
	return file, key
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body)
	}
	return data
}

func detailsMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	details, ok := body["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %+v", body)
	}
	return details
}
