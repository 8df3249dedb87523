// Package ingredient serves the health food ingredient reference data. The
// searchable rows live in the database, the dataset files they were imported
// from stay on disk and can be listed, downloaded and replaced through this
// API. The routes keep the doubled prefix the legacy frontend calls.
package ingredient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	controller "github.com/slidetrans/slidetrans/internal/db/controller/ingredient"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/storage"
	"github.com/slidetrans/slidetrans/internal/web/handler"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
)

const (
	basePath = handler.RootPath + "ingredient/api/ingredient"

	// SearchPath queries the reference entries.
	SearchPath = basePath + "/search"

	// UploadPath accepts replacement dataset files.
	UploadPath = basePath + "/upload-file"

	// FilesPath lists the dataset directory.
	FilesPath = basePath + "/files"

	// DownloadPath serves a dataset file, or a directory as a zip archive.
	DownloadPath = basePath + "/download"

	zipContentType = "application/zip"

	// mainIngredientLimit caps the ingredient summary the search cards show.
	mainIngredientLimit = 3
)

// Service is the ingredient handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	datastore *storage.Datastore
}

// Handler is the ingredient handler.
var Handler = Service{}

// Init initializes the ingredient handler. Every route requires the
// ingredient.search permission.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service, datastore *storage.Datastore) {
	if app == nil || cfg == nil || db == nil || datastore == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.datastore = datastore

	requireSearch := auth.RequirePermission(authService, auth.PermIngredientSearch)

	app.Get(SearchPath, requireSearch, s.Search)
	app.Post(UploadPath, requireSearch, s.UploadFile)
	app.Get(FilesPath, requireSearch, s.Files)
	app.Get(DownloadPath, requireSearch, s.Download)
}

// Search matches the keyword against food names and ingredient texts.
// data_source narrows to entries imported from a matching dataset path,
// "all" or empty searches everything.
func (s *Service) Search(c *fiber.Ctx) error {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		return fail(c, fiber.StatusBadRequest, "search keyword is required")
	}

	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", controller.DefaultPerPage)

	entries, total, err := controller.Search(s.db, controller.SearchParams{
		Keyword:    keyword,
		DataSource: c.Query("data_source"),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		log.Error().Err(err).Str("keyword", keyword).Msg("failed to search reference data")
		return fail(c, fiber.StatusInternalServerError, "failed to search reference data")
	}

	data := make([]fiber.Map, 0, len(entries))
	for i := range entries {
		data = append(data, entryJSON(&entries[i]))
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       data,
		"pagination": handler.NewPagination(page, perPage, total),
	})
}

// UploadFile stores a dataset file in the data directory, backing up the
// previous version. JSON datasets are validated before anything touches the
// disk and their products are imported into the reference table.
func (s *Service) UploadFile(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "no file uploaded")
	}

	name := filepath.Base(strings.ReplaceAll(fileHeader.Filename, "\\", "/"))
	if name == "" || name == "." || name == ".." {
		return fail(c, fiber.StatusBadRequest, "invalid filename")
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Msg("failed to open uploaded dataset file")
		return fail(c, fiber.StatusInternalServerError, "failed to read the upload")
	}
	defer src.Close()

	var (
		payload io.Reader = src
		dataset []models.Ingredient
	)

	isJSON := strings.EqualFold(filepath.Ext(name), ".json")
	if isJSON {
		raw, err := io.ReadAll(src)
		if err != nil {
			log.Error().Err(err).Msg("failed to read uploaded dataset file")
			return fail(c, fiber.StatusInternalServerError, "failed to read the upload")
		}

		// a broken dataset never replaces the previous version on disk
		dataset, err = parseDataset(name, raw)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "the dataset is not valid json")
		}

		payload = bytes.NewReader(raw)
	}

	backedUp, err := s.datastore.SaveFile(name, payload)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyFilename),
			errors.Is(err, storage.ErrExtensionNotAllowed),
			errors.Is(err, storage.ErrPathOutsideRoot):
			return fail(c, fiber.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("file", name).Msg("failed to save dataset file")
			return fail(c, fiber.StatusInternalServerError, "failed to save the dataset file")
		}
	}

	var created, updated int
	if isJSON {
		created, updated, err = controller.BatchUpsert(s.db, dataset)
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("failed to import dataset")
			return fail(c, fiber.StatusInternalServerError, "the file was saved but the import failed")
		}
	}

	info, err := s.datastore.Stat(name)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("failed to stat saved dataset file")
		info = storage.FileInfo{Name: name, RelativePath: name}
	}

	data := fileJSON(info)
	data["backed_up"] = backedUp
	if isJSON {
		data["imported"] = fiber.Map{
			"created": created,
			"updated": updated,
		}
	}

	log.Info().Str("username", current.Username).Str("file", name).
		Int("created", created).Int("updated", updated).Msg("dataset file uploaded")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "file uploaded",
		"data":    data,
	})
}

// Files lists the dataset directory, newest first.
func (s *Service) Files(c *fiber.Ctx) error {
	files, err := s.datastore.List()
	if err != nil {
		log.Error().Err(err).Msg("failed to list dataset files")
		return fail(c, fiber.StatusInternalServerError, "failed to list dataset files")
	}

	data := make([]fiber.Map, 0, len(files))
	for _, info := range files {
		data = append(data, fileJSON(info))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// Download serves the dataset path from the query string. Directories are
// streamed as zip archives, files as attachments unless download=0 asks for
// an inline response.
func (s *Service) Download(c *fiber.Ctx) error {
	rel := c.Query("path")
	if rel == "" {
		return fail(c, fiber.StatusBadRequest, "path is required")
	}

	f, info, err := s.datastore.Open(rel)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrPathOutsideRoot):
			return fail(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, fs.ErrNotExist):
			return fail(c, fiber.StatusNotFound, "file not found")
		default:
			log.Error().Err(err).Str("path", rel).Msg("failed to open dataset file")
			return fail(c, fiber.StatusInternalServerError, "failed to open the file")
		}
	}

	if info.IsDir() {
		_ = f.Close()

		var buf bytes.Buffer
		if err := s.datastore.ZipDir(rel, &buf); err != nil {
			log.Error().Err(err).Str("path", rel).Msg("failed to archive dataset directory")
			return fail(c, fiber.StatusInternalServerError, "failed to build the archive")
		}

		c.Set(fiber.HeaderContentType, zipContentType)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+info.Name()+`.zip"`)

		return c.Send(buf.Bytes())
	}

	if ext := strings.TrimPrefix(filepath.Ext(info.Name()), "."); ext != "" {
		c.Type(ext)
	}

	if c.Query("download", "1") != "0" {
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+info.Name()+`"`)
	}

	return c.SendStream(f, int(info.Size()))
}

// datasetEntry is one product of an uploaded reference file.
type datasetEntry struct {
	Ingredient string `json:"ingredient"`
}

// parseDataset decodes a reference dataset, a JSON object keyed by product
// name. Every row keeps the dataset file name so searches can filter by
// source file.
func parseDataset(name string, raw []byte) ([]models.Ingredient, error) {
	var products map[string]datasetEntry
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, err
	}

	entries := make([]models.Ingredient, 0, len(products))

	for foodName, product := range products {
		foodName = strings.TrimSpace(foodName)
		if foodName == "" {
			continue
		}

		entries = append(entries, models.Ingredient{
			FoodName:   foodName,
			Ingredient: product.Ingredient,
			Path:       name,
		})
	}

	return entries, nil
}

// mainIngredients condenses a comma separated ingredient list to its first
// entries, the suffix marks a truncated list.
func mainIngredients(ingredients string) string {
	if ingredients == "" {
		return ""
	}

	parts := strings.Split(ingredients, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) <= mainIngredientLimit {
		return strings.Join(parts, "、")
	}

	return strings.Join(parts[:mainIngredientLimit], "、") + "等"
}

func entryJSON(entry *models.Ingredient) fiber.Map {
	return fiber.Map{
		"id":               entry.ID,
		"food_name":        entry.FoodName,
		"ingredient":       entry.Ingredient,
		"main_ingredients": mainIngredients(entry.Ingredient),
		"path":             entry.Path,
	}
}

func fileJSON(info storage.FileInfo) fiber.Map {
	return fiber.Map{
		"name":          info.Name,
		"relative_path": info.RelativePath,
		"size":          info.Size,
		"modified_at":   info.ModifiedAt,
		"is_directory":  info.IsDirectory,
		"download_url":  fmt.Sprintf("%s?path=%s&download=1", DownloadPath, url.QueryEscape(info.RelativePath)),
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
