package files

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/controller/uploadrecord"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/storage"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
	websess "github.com/slidetrans/slidetrans/internal/web/session"
)

func setupTest(t *testing.T) (*fiber.App, *gorm.DB, *storage.Manager) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.User{},
		&models.Group{},
		&models.GroupMapping{},
		&models.UserGroup{},
		&models.UploadRecord{},
	))

	websess.Init(memory.New())

	store := storage.NewManager(t.TempDir(), 10, 100, []string{"pptx", "pdf"})

	app := fiber.New()
	authService := auth.NewService(db)

	app.Use(authmw.New(authService))

	s := &Service{}
	s.Init(app, &config.Config{}, db, authService, store)

	return app, db, store
}

func seedAdmin(t *testing.T, db *gorm.DB) models.User {
	t.Helper()

	role := models.Role{Name: models.RoleAdmin, IsSystem: true}
	require.NoError(t, db.Create(&role).Error)

	perm := models.Permission{Name: auth.PermAdminAccess}
	require.NoError(t, db.Create(&perm).Error)
	require.NoError(t, db.Create(&models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}).Error)

	admin := models.User{
		Username:   "root",
		Status:     models.StatusApproved,
		AuthSource: models.AuthSourceLocal,
		RoleID:     &role.ID,
	}
	require.NoError(t, db.Create(&admin).Error)

	return admin
}

func signIn(t *testing.T, user models.User) *http.Cookie {
	t.Helper()

	sessionID, err := websess.GenerateSessionID()
	require.NoError(t, err)

	require.NoError(t, (&websess.Data{User: user}).Write(sessionID, time.Hour))

	return &http.Cookie{Name: "session", Value: sessionID}
}

// storeUpload writes a file through the manager and records it like the
// upload endpoint does.
func storeUpload(t *testing.T, db *gorm.DB, store *storage.Manager, owner models.User, filename string) *models.UploadRecord {
	t.Helper()

	stored, err := store.Store(owner.ID, "ppt", filename, strings.NewReader("deck-bytes"))
	require.NoError(t, err)

	record := &models.UploadRecord{
		Filename:       stored.Name,
		StoredFilename: stored.StoredName,
		FilePath:       stored.Dir,
		FileSize:       stored.Size,
		Status:         models.UploadStatusCompleted,
		UserID:         owner.ID,
	}
	require.NoError(t, uploadrecord.Create(db, record))

	return record
}

func doRequest(t *testing.T, app *fiber.App, method, target string, cookie *http.Cookie) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NoError(t, resp.Body.Close())

	return body
}

func TestListAllFiles(t *testing.T) {
	app, db, store := setupTest(t)

	admin := seedAdmin(t, db)

	owner := models.User{Username: "alice", Status: models.StatusApproved}
	require.NoError(t, db.Create(&owner).Error)

	present := storeUpload(t, db, store, owner, "deck.pptx")
	missing := storeUpload(t, db, store, owner, "gone.pptx")
	require.NoError(t, store.Remove(missing.FilePath, missing.StoredFilename))

	resp := doRequest(t, app, http.MethodGet, Path, signIn(t, admin))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["total"])

	items, ok := body["files"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	byName := make(map[string]map[string]any, len(items))
	for _, item := range items {
		entry := item.(map[string]any)
		byName[entry["filename"].(string)] = entry
	}

	require.Contains(t, byName, present.Filename)
	assert.Equal(t, true, byName[present.Filename]["file_exists"])
	assert.Equal(t, "alice", byName[present.Filename]["username"])

	require.Contains(t, byName, missing.Filename)
	assert.Equal(t, false, byName[missing.Filename]["file_exists"])
}

func TestDeleteFile(t *testing.T) {
	app, db, store := setupTest(t)

	admin := seedAdmin(t, db)

	owner := models.User{Username: "alice", Status: models.StatusApproved}
	require.NoError(t, db.Create(&owner).Error)

	record := storeUpload(t, db, store, owner, "deck.pptx")
	require.True(t, store.Exists(record.FilePath, record.StoredFilename))

	cookie := signIn(t, admin)

	resp := doRequest(t, app, http.MethodDelete, fmt.Sprintf("%s/%d", Path, record.ID), cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.False(t, store.Exists(record.FilePath, record.StoredFilename))

	_, err := uploadrecord.GetByID(db, record.ID)
	assert.ErrorIs(t, err, uploadrecord.ErrRecordNotFound)

	resp = doRequest(t, app, http.MethodDelete, fmt.Sprintf("%s/%d", Path, record.ID), cookie)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteFileAlreadyGoneFromDisk(t *testing.T) {
	app, db, store := setupTest(t)

	admin := seedAdmin(t, db)

	owner := models.User{Username: "alice", Status: models.StatusApproved}
	require.NoError(t, db.Create(&owner).Error)

	record := storeUpload(t, db, store, owner, "deck.pptx")
	require.NoError(t, store.Remove(record.FilePath, record.StoredFilename))

	resp := doRequest(t, app, http.MethodDelete, fmt.Sprintf("%s/%d", Path, record.ID), signIn(t, admin))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, err := uploadrecord.GetByID(db, record.ID)
	assert.ErrorIs(t, err, uploadrecord.ErrRecordNotFound)
}

func TestFilesRequireAdminAccess(t *testing.T) {
	app, db, _ := setupTest(t)

	member := models.User{Username: "alice", Status: models.StatusApproved}
	require.NoError(t, db.Create(&member).Error)

	resp := doRequest(t, app, http.MethodGet, Path, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, Path, signIn(t, member))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
