package glossary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/models"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
	websess "github.com/slidetrans/slidetrans/internal/web/session"
)

func setupTest(t *testing.T) (*fiber.App, *gorm.DB) {
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
		&models.Translation{},
	))

	websess.Init(memory.New())

	app := fiber.New()
	authService := auth.NewService(db)

	app.Use(authmw.New(authService))

	s := &Service{}
	s.Init(app, &config.Config{}, db, authService)

	return app, db
}

// seedAccount creates an approved account with its own role holding the
// given permissions.
func seedAccount(t *testing.T, db *gorm.DB, username string, perms ...string) models.User {
	t.Helper()

	role := models.Role{Name: username + "-role"}
	require.NoError(t, db.Create(&role).Error)

	for _, name := range perms {
		var perm models.Permission
		require.NoError(t, db.Where(models.Permission{Name: name}).FirstOrCreate(&perm).Error)
		require.NoError(t, db.Create(&models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}).Error)
	}

	user := models.User{
		Username:   username,
		Status:     models.StatusApproved,
		AuthSource: models.AuthSourceLocal,
		RoleID:     &role.ID,
	}
	require.NoError(t, db.Create(&user).Error)

	return user
}

func seedManager(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()

	return seedAccount(t, db, username, auth.PermGlossaryManage)
}

func seedAdmin(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()

	return seedAccount(t, db, username, auth.PermGlossaryManage, auth.PermAdminAccess)
}

func seedEntry(t *testing.T, db *gorm.DB, owner models.User, english, chinese string, isPublic bool) models.Translation {
	t.Helper()

	entry := models.Translation{
		English:  english,
		Chinese:  chinese,
		IsPublic: isPublic,
		UserID:   &owner.ID,
	}
	require.NoError(t, db.Create(&entry).Error)

	return entry
}

func signIn(t *testing.T, user models.User) *http.Cookie {
	t.Helper()

	sessionID, err := websess.GenerateSessionID()
	require.NoError(t, err)

	require.NoError(t, (&websess.Data{User: user}).Write(sessionID, time.Hour))

	return &http.Cookie{Name: "session", Value: sessionID}
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return req
}

func fileUpload(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())

	return req
}

// workbookBytes builds an .xlsx workbook from literal rows.
func workbookBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()

	workbook := excelize.NewFile()
	sheet := workbook.GetSheetName(0)

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, workbook.SetSheetRow(sheet, cell, &rows[i]))
	}

	content, err := workbook.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, workbook.Close())

	return content.Bytes()
}

func do(t *testing.T, app *fiber.App, req *http.Request, cookie *http.Cookie) *http.Response {
	t.Helper()

	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func get(t *testing.T, app *fiber.App, target string, cookie *http.Cookie) *http.Response {
	t.Helper()

	return do(t, app, httptest.NewRequest(http.MethodGet, target, nil), cookie)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NoError(t, resp.Body.Close())

	return body
}

func englishTerms(t *testing.T, body map[string]any) []string {
	t.Helper()

	items, ok := body["data"].([]any)
	require.True(t, ok, "response carries no data array")

	terms := make([]string, 0, len(items))

	for _, item := range items {
		entry, ok := item.(map[string]any)
		require.True(t, ok)
		terms = append(terms, entry["english"].(string))
	}

	return terms
}

func TestListTranslations(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	root := seedAdmin(t, db, "root")

	seedEntry(t, db, alice, "apple", "苹果", false)
	seedEntry(t, db, alice, "berry", "浆果", false)
	seedEntry(t, db, root, "carrot", "胡萝卜", true)
	seedEntry(t, db, root, "durian", "榴莲", false)

	cookie := signIn(t, alice)

	// the default view is the requester's private rows, newest first
	resp := get(t, app, Path, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, []string{"berry", "apple"}, englishTerms(t, body))

	items := body["data"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, false, first["is_public"])
	user, ok := first["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", user["username"])

	resp = get(t, app, Path+"?visibility=public", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"carrot"}, englishTerms(t, decodeBody(t, resp)))

	// all combines own private rows and the public set, root's private
	// durian stays invisible
	resp = get(t, app, Path+"?visibility=all", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"carrot", "berry", "apple"}, englishTerms(t, decodeBody(t, resp)))

	resp = get(t, app, Path+"?search=app", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"apple"}, englishTerms(t, decodeBody(t, resp)))

	resp = get(t, app, Path+"?per_page=1&page=2", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body = decodeBody(t, resp)
	assert.Equal(t, []string{"apple"}, englishTerms(t, body))

	pagination, ok := body["pagination"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), pagination["total"])
	assert.Equal(t, float64(2), pagination["total_pages"])
	assert.Equal(t, float64(2), pagination["current_page"])
}

func TestCreateTranslation(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	cookie := signIn(t, alice)

	resp := do(t, app, jsonRequest(t, http.MethodPost, Path, fiber.Map{
		"english":  "grape",
		"chinese":  "葡萄",
		"dutch":    "druif",
		"category": "fruit",
	}), cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "grape", data["english"])

	var entry models.Translation
	require.NoError(t, db.Where("english = ?", "grape").First(&entry).Error)
	assert.False(t, entry.IsPublic)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, alice.ID, *entry.UserID)

	resp = do(t, app, jsonRequest(t, http.MethodPost, Path, fiber.Map{"english": "pear"}), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "english and chinese are both required", decodeBody(t, resp)["message"])

	resp = do(t, app, jsonRequest(t, http.MethodPost, Path, fiber.Map{
		"english": "grape",
		"chinese": "葡萄干",
	}), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPublicEntriesNeedAdmin(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	root := seedAdmin(t, db, "root")

	// the public flag of a non-administrator is dropped, not an error
	resp := do(t, app, jsonRequest(t, http.MethodPost, Path, fiber.Map{
		"english":   "melon",
		"chinese":   "瓜",
		"is_public": true,
	}), signIn(t, alice))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var melon models.Translation
	require.NoError(t, db.Where("english = ?", "melon").First(&melon).Error)
	assert.False(t, melon.IsPublic)

	resp = do(t, app, jsonRequest(t, http.MethodPost, Path, fiber.Map{
		"english":   "kiwi",
		"chinese":   "猕猴桃",
		"is_public": true,
	}), signIn(t, root))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var kiwi models.Translation
	require.NoError(t, db.Where("english = ?", "kiwi").First(&kiwi).Error)
	assert.True(t, kiwi.IsPublic)

	// publishing an existing private entry is just as restricted
	resp = do(t, app, jsonRequest(t, http.MethodPut, fmt.Sprintf("%s/%d", Path, melon.ID), fiber.Map{
		"english":   "melon",
		"chinese":   "瓜",
		"is_public": true,
	}), signIn(t, alice))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "only administrators may change the public flag", decodeBody(t, resp)["message"])
}

func TestUpdateTranslation(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	apple := seedEntry(t, db, alice, "apple", "苹果", false)
	seedEntry(t, db, alice, "berry", "浆果", false)

	cookie := signIn(t, alice)
	target := fmt.Sprintf("%s/%d", Path, apple.ID)

	resp := do(t, app, jsonRequest(t, http.MethodPut, target, fiber.Map{
		"english":  "apple",
		"chinese":  "苹果果",
		"category": "fruit",
	}), cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fresh models.Translation
	require.NoError(t, db.First(&fresh, apple.ID).Error)
	assert.Equal(t, "苹果果", fresh.Chinese)
	assert.Equal(t, "fruit", fresh.Category)

	// renaming onto another of her entries collides
	resp = do(t, app, jsonRequest(t, http.MethodPut, target, fiber.Map{
		"english": "berry",
		"chinese": "苹果果",
	}), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, jsonRequest(t, http.MethodPut, target, fiber.Map{"english": "apple"}), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, jsonRequest(t, http.MethodPut, Path+"/4242", fiber.Map{
		"english": "apple",
		"chinese": "苹果",
	}), cookie)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = do(t, app, jsonRequest(t, http.MethodPut, Path+"/nonsense", fiber.Map{
		"english": "apple",
		"chinese": "苹果",
	}), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdatePermissions(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	bob := seedManager(t, db, "bob")
	root := seedAdmin(t, db, "root")

	private := seedEntry(t, db, alice, "apple", "苹果", false)
	public := seedEntry(t, db, root, "carrot", "胡萝卜", true)

	// private entries belong to their owner, administrators included
	payload := fiber.Map{"english": "apple", "chinese": "苹果"}
	resp := do(t, app, jsonRequest(t, http.MethodPut, fmt.Sprintf("%s/%d", Path, private.ID), payload), signIn(t, bob))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "you can only edit your own entries", decodeBody(t, resp)["message"])

	resp = do(t, app, jsonRequest(t, http.MethodPut, fmt.Sprintf("%s/%d", Path, private.ID), payload), signIn(t, root))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	publicTarget := fmt.Sprintf("%s/%d", Path, public.ID)
	publicPayload := fiber.Map{"english": "carrot", "chinese": "红萝卜"}

	resp = do(t, app, jsonRequest(t, http.MethodPut, publicTarget, publicPayload), signIn(t, bob))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "only administrators may edit public entries", decodeBody(t, resp)["message"])

	resp = do(t, app, jsonRequest(t, http.MethodPut, publicTarget, publicPayload), signIn(t, root))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fresh models.Translation
	require.NoError(t, db.First(&fresh, public.ID).Error)
	assert.Equal(t, "红萝卜", fresh.Chinese)

	// administrators may pull an entry back into the private set
	resp = do(t, app, jsonRequest(t, http.MethodPut, publicTarget, fiber.Map{
		"english":   "carrot",
		"chinese":   "红萝卜",
		"is_public": false,
	}), signIn(t, root))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, db.First(&fresh, public.ID).Error)
	assert.False(t, fresh.IsPublic)
}

func TestDeleteTranslation(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	bob := seedManager(t, db, "bob")
	root := seedAdmin(t, db, "root")

	private := seedEntry(t, db, alice, "apple", "苹果", false)
	public := seedEntry(t, db, root, "carrot", "胡萝卜", true)

	target := fmt.Sprintf("%s/%d", Path, private.ID)

	resp := do(t, app, httptest.NewRequest(http.MethodDelete, target, nil), signIn(t, bob))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "you can only delete your own entries", decodeBody(t, resp)["message"])

	resp = do(t, app, httptest.NewRequest(http.MethodDelete, target, nil), signIn(t, alice))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	err := db.First(&models.Translation{}, private.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	resp = do(t, app, httptest.NewRequest(http.MethodDelete, target, nil), signIn(t, alice))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	publicTarget := fmt.Sprintf("%s/%d", Path, public.ID)

	resp = do(t, app, httptest.NewRequest(http.MethodDelete, publicTarget, nil), signIn(t, alice))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "only administrators may delete public entries", decodeBody(t, resp)["message"])

	resp = do(t, app, httptest.NewRequest(http.MethodDelete, publicTarget, nil), signIn(t, root))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCategoriesAndStats(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	root := seedAdmin(t, db, "root")

	first := seedEntry(t, db, alice, "apple", "苹果", false)
	second := seedEntry(t, db, alice, "berry", "浆果", false)
	third := seedEntry(t, db, root, "carrot", "胡萝卜", true)
	fourth := seedEntry(t, db, root, "durian", "榴莲", false)

	require.NoError(t, db.Model(&first).Update("category", "fruit;snack").Error)
	require.NoError(t, db.Model(&second).Update("category", "Veggie").Error)
	require.NoError(t, db.Model(&third).Update("category", "fruit").Error)
	require.NoError(t, db.Model(&fourth).Update("category", "secret").Error)

	cookie := signIn(t, alice)

	resp := get(t, app, CategoriesPath, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	categories, ok := body["categories"].([]any)
	require.True(t, ok)
	// semicolon lists are split, root's private category stays invisible
	assert.Equal(t, []any{"fruit", "snack", "Veggie"}, categories)

	resp = get(t, app, StatsPath, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body = decodeBody(t, resp)
	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), stats["total_translations"])
	assert.Equal(t, float64(1), stats["public_count"])

	counts, ok := stats["categories"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), counts["fruit"])
	assert.Equal(t, float64(1), counts["snack"])
	assert.Equal(t, float64(1), counts["Veggie"])
}

func TestBatchUpload(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	root := seedAdmin(t, db, "root")

	content := workbookBytes(t, [][]any{
		{"english", "chinese", "dutch", "category", "is_public"},
		{"melon", "瓜", "meloen", "fruit", 1},
		{"kiwi", "猕猴桃", "", "", 0},
		{"melon", "瓜", "", "", ""},
	})

	resp := do(t, app, fileUpload(t, BatchUploadPath, "glossary.xlsx", content), signIn(t, alice))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["success_count"])
	assert.Equal(t, float64(1), body["error_count"])

	uploadErrors, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, uploadErrors, 1)
	assert.Contains(t, uploadErrors[0], "melon")

	// alice is no administrator, her public flag was dropped
	var melon models.Translation
	require.NoError(t, db.Where("english = ?", "melon").First(&melon).Error)
	assert.False(t, melon.IsPublic)
	require.NotNil(t, melon.UserID)
	assert.Equal(t, alice.ID, *melon.UserID)
	assert.Equal(t, "meloen", melon.Dutch)
	assert.Equal(t, "fruit", melon.Category)

	adminContent := workbookBytes(t, [][]any{
		{"english", "chinese", "dutch", "category", "is_public"},
		{"carrot", "胡萝卜", "", "", "yes"},
	})

	resp = do(t, app, fileUpload(t, BatchUploadPath, "shared.xlsx", adminContent), signIn(t, root))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decodeBody(t, resp)["success_count"])

	var carrot models.Translation
	require.NoError(t, db.Where("english = ?", "carrot").First(&carrot).Error)
	assert.True(t, carrot.IsPublic)
}

func TestBatchUploadRejectsBadWorkbooks(t *testing.T) {
	app, db := setupTest(t)

	cookie := signIn(t, seedManager(t, db, "alice"))

	resp := do(t, app, fileUpload(t, BatchUploadPath, "words.txt", []byte("melon")), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "only .xlsx workbooks are supported", decodeBody(t, resp)["message"])

	resp = do(t, app, fileUpload(t, BatchUploadPath, "broken.xlsx", []byte("not a workbook")), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "the file is not a valid xlsx workbook", decodeBody(t, resp)["message"])

	wrongHeader := workbookBytes(t, [][]any{
		{"term", "translation"},
		{"melon", "瓜"},
	})
	resp = do(t, app, fileUpload(t, BatchUploadPath, "glossary.xlsx", wrongHeader), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp)["message"], "header row must be")

	// one bad row rejects the workbook before anything is stored
	missingChinese := workbookBytes(t, [][]any{
		{"english", "chinese", "dutch", "category", "is_public"},
		{"melon", "瓜", "", "", ""},
		{"pear", "", "", "", ""},
	})
	resp = do(t, app, fileUpload(t, BatchUploadPath, "glossary.xlsx", missingChinese), cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	rowErrors, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, "row 3: english and chinese are required", rowErrors[0])

	var count int64
	require.NoError(t, db.Model(&models.Translation{}).Count(&count).Error)
	assert.Zero(t, count)

	req := httptest.NewRequest(http.MethodPost, BatchUploadPath, nil)
	resp = do(t, app, req, cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "no file uploaded", decodeBody(t, resp)["message"])
}

func TestExportWorkbook(t *testing.T) {
	app, db := setupTest(t)

	alice := seedManager(t, db, "alice")
	root := seedAdmin(t, db, "root")

	apple := seedEntry(t, db, alice, "apple", "苹果", false)
	carrot := seedEntry(t, db, root, "carrot", "胡萝卜", true)
	require.NoError(t, db.Model(&apple).Updates(map[string]any{"dutch": "appel", "category": "fruit"}).Error)
	require.NoError(t, db.Model(&carrot).Updates(map[string]any{"dutch": "wortel", "category": "veggie"}).Error)

	cookie := signIn(t, alice)

	resp := get(t, app, ExportPath, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), ".xlsx")

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	workbook, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer workbook.Close()

	rows, err := workbook.GetRows(workbook.GetSheetName(0))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"english", "chinese", "dutch", "category", "is_public"}, rows[0])
	assert.Equal(t, []string{"carrot", "胡萝卜", "wortel", "veggie", "1"}, rows[1])
	assert.Equal(t, []string{"apple", "苹果", "appel", "fruit", "0"}, rows[2])

	// a narrowed export only carries the requested set
	resp = get(t, app, ExportPath+"?visibility=private", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	narrowed, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer narrowed.Close()

	rows, err = narrowed.GetRows(narrowed.GetSheetName(0))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "apple", rows[1][0])
}

func TestGlossaryRequiresPermission(t *testing.T) {
	app, db := setupTest(t)

	outsider := seedAccount(t, db, "outsider")

	resp := get(t, app, Path, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = get(t, app, Path, signIn(t, outsider))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = get(t, app, StatsPath, signIn(t, outsider))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
