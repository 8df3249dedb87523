// Package glossary provides the translation memory API. Entries pair an
// English term with its Chinese translation, optionally a Dutch one and a
// category. An entry is private to its owner unless an administrator
// publishes it, published entries are shared with every user. Workbook
// import and export move whole glossaries in and out as .xlsx files.
package glossary

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/config"
	controller "github.com/slidetrans/slidetrans/internal/db/controller/glossary"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/web/handler"
	authmw "github.com/slidetrans/slidetrans/internal/web/middleware/auth"
)

const (
	// Path is the base path of the translation memory API.
	Path = handler.APIPath + "/translations"

	// CategoriesPath lists the distinct category names.
	CategoriesPath = Path + "/categories"

	// StatsPath summarizes the requester's glossary.
	StatsPath = Path + "/stats"

	// BatchUploadPath imports entries from an .xlsx workbook.
	BatchUploadPath = Path + "/batch_upload"

	// ExportPath downloads the visible entries as an .xlsx workbook.
	ExportPath = Path + "/export"

	// defaultPerPage is the page size of the listing when the client
	// does not ask for one.
	defaultPerPage = 10

	// maxReportedErrors caps the error list of a batch upload response.
	maxReportedErrors = 10

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// uploadColumns is the required header row of an upload workbook and the
// column order of an export.
var uploadColumns = []string{"english", "chinese", "dutch", "category", "is_public"} //nolint:gochecknoglobals // fixed workbook layout

// Service is the translation memory handler service.
type Service struct {
	handler.Service
	cfg         *config.Config
	db          *gorm.DB
	authService *auth.Service
}

// Handler is the translation memory handler.
var Handler = Service{}

// entryRequest is the JSON body of create and update requests. IsPublic is
// a pointer so an update can tell an absent flag from an explicit false.
type entryRequest struct {
	English  string `json:"english"`
	Chinese  string `json:"chinese"`
	Dutch    string `json:"dutch"`
	Category string `json:"category"`
	IsPublic *bool  `json:"is_public"`
}

// Init initializes the translation memory handler. Every route requires the
// glossary.manage permission, publishing additionally requires admin.access.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.authService = authService

	requireGlossary := auth.RequirePermission(authService, auth.PermGlossaryManage)

	app.Get(Path, requireGlossary, s.List)
	app.Post(Path, requireGlossary, s.Create)
	app.Get(CategoriesPath, requireGlossary, s.Categories)
	app.Get(StatsPath, requireGlossary, s.Stats)
	app.Post(BatchUploadPath, requireGlossary, s.BatchUpload)
	app.Get(ExportPath, requireGlossary, s.Export)
	app.Put(Path+"/:id", requireGlossary, s.Update)
	app.Delete(Path+"/:id", requireGlossary, s.Delete)
}

// List returns a page of glossary entries. The default view is the
// requester's private rows, visibility=public selects the shared set and
// visibility=all combines both. Search matches all four text columns.
func (s *Service) List(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	perPage := c.QueryInt("per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}

	entries, total, err := controller.List(s.db, controller.ListParams{
		UserID:     current.ID,
		Visibility: c.Query("visibility", "private"),
		Search:     c.Query("search"),
		Category:   c.Query("category"),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to query glossary entries")
		return fail(c, fiber.StatusInternalServerError, "failed to load glossary entries")
	}

	items := make([]fiber.Map, 0, len(entries))
	for i := range entries {
		items = append(items, entryJSON(&entries[i]))
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       items,
		"pagination": handler.NewPagination(page, perPage, total),
	})
}

// Create stores a new glossary entry owned by the requester. Only
// administrators may create public entries, for everyone else the public
// flag is quietly dropped and the entry stays private.
func (s *Service) Create(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req entryRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	isPublic := req.IsPublic != nil && *req.IsPublic && s.isAdmin(c)

	entry := models.Translation{
		English:  req.English,
		Chinese:  req.Chinese,
		Dutch:    req.Dutch,
		Category: req.Category,
		IsPublic: isPublic,
		UserID:   &current.ID,
	}

	if err := controller.Create(s.db, &entry); err != nil {
		return respondSaveError(c, err)
	}

	log.Info().Str("english", entry.English).Str("username", current.Username).
		Bool("is_public", entry.IsPublic).Msg("glossary entry created")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "glossary entry created",
		"data":    entryJSON(&entry),
	})
}

// Update edits an existing entry. Private entries belong to their owner,
// public entries to the administrators, and only administrators may move an
// entry between the two sets.
func (s *Service) Update(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	entry, err := s.findEntry(c)
	if err != nil {
		return respondLookupError(c, err)
	}

	isAdmin := s.isAdmin(c)

	if entry.IsPublic {
		if !isAdmin {
			return fail(c, fiber.StatusForbidden, "only administrators may edit public entries")
		}
	} else if entry.UserID == nil || *entry.UserID != current.ID {
		return fail(c, fiber.StatusForbidden, "you can only edit your own entries")
	}

	var req entryRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.IsPublic != nil && *req.IsPublic != entry.IsPublic && !isAdmin {
		return fail(c, fiber.StatusForbidden, "only administrators may change the public flag")
	}

	entry.English = req.English
	entry.Chinese = req.Chinese
	entry.Dutch = req.Dutch
	entry.Category = req.Category
	if isAdmin && req.IsPublic != nil {
		entry.IsPublic = *req.IsPublic
	}

	if err := controller.Update(s.db, entry); err != nil {
		return respondSaveError(c, err)
	}

	log.Info().Uint64("entry_id", entry.ID).Str("username", current.Username).Msg("glossary entry updated")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "glossary entry updated",
		"data":    entryJSON(entry),
	})
}

// Delete removes an entry. The ownership rules of Update apply.
func (s *Service) Delete(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	entry, err := s.findEntry(c)
	if err != nil {
		return respondLookupError(c, err)
	}

	if entry.IsPublic {
		if !s.isAdmin(c) {
			return fail(c, fiber.StatusForbidden, "only administrators may delete public entries")
		}
	} else if entry.UserID == nil || *entry.UserID != current.ID {
		return fail(c, fiber.StatusForbidden, "you can only delete your own entries")
	}

	if err := controller.Delete(s.db, entry.ID); err != nil {
		log.Error().Err(err).Uint64("entry_id", entry.ID).Msg("failed to delete glossary entry")
		return fail(c, fiber.StatusInternalServerError, "failed to delete glossary entry")
	}

	log.Info().Uint64("entry_id", entry.ID).Str("username", current.Username).Msg("glossary entry deleted")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "glossary entry deleted",
	})
}

// Categories returns the distinct category names of the entries visible to
// the requester, sorted case-insensitively.
func (s *Service) Categories(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	categories, err := controller.Categories(s.db, current.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load glossary categories")
		return fail(c, fiber.StatusInternalServerError, "failed to load categories")
	}

	if categories == nil {
		categories = []string{}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"categories": categories,
	})
}

// Stats summarizes the requester's glossary, own row count, public row
// count and entries per category.
func (s *Service) Stats(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	stats, err := controller.GetStats(s.db, current.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load glossary stats")
		return fail(c, fiber.StatusInternalServerError, "failed to load stats")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

// BatchUpload imports entries from an uploaded .xlsx workbook. The first
// worksheet must carry the header row english, chinese, dutch, category,
// is_public. Rows are validated and inserted one by one, the response
// reports how many made it and the first few failures.
func (s *Service) BatchUpload(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "no file uploaded")
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
		return fail(c, fiber.StatusBadRequest, "only .xlsx workbooks are supported")
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Msg("failed to open uploaded workbook")
		return fail(c, fiber.StatusInternalServerError, "failed to read uploaded file")
	}
	defer file.Close()

	rows, rowErrors, err := parseWorkbook(file, s.isAdmin(c))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	if len(rowErrors) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "workbook validation failed",
			"errors":  firstN(rowErrors, maxReportedErrors),
		})
	}

	if len(rows) == 0 {
		return fail(c, fiber.StatusBadRequest, "the workbook contains no usable rows")
	}

	var (
		stored       int
		insertErrors []string
	)

	for i := range rows {
		entry := rows[i]
		entry.UserID = &current.ID

		err := controller.Create(s.db, &entry)
		switch {
		case err == nil:
			stored++
		case errors.Is(err, controller.ErrDuplicateEntry):
			insertErrors = append(insertErrors, fmt.Sprintf("english %q already exists", entry.English))
		default:
			log.Error().Err(err).Str("english", entry.English).Msg("failed to store imported glossary entry")
			insertErrors = append(insertErrors, fmt.Sprintf("storing %q failed", entry.English))
		}
	}

	log.Info().Int("stored", stored).Int("failed", len(insertErrors)).
		Str("username", current.Username).Msg("glossary batch upload finished")

	result := fiber.Map{
		"success":       true,
		"message":       fmt.Sprintf("batch upload finished, %d stored, %d failed", stored, len(insertErrors)),
		"success_count": stored,
		"error_count":   len(insertErrors),
	}
	if len(insertErrors) > 0 {
		result["errors"] = firstN(insertErrors, maxReportedErrors)
	}

	return c.JSON(result)
}

// Export downloads the entries visible to the requester as an .xlsx
// workbook in the upload column order, so an export can be re-imported.
// The default visibility is all, ?visibility=private or public narrows it.
func (s *Service) Export(c *fiber.Ctx) error {
	current, ok := authmw.CurrentUser(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}

	entries, _, err := controller.List(s.db, controller.ListParams{
		UserID:     current.ID,
		Visibility: c.Query("visibility", "all"),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to query glossary entries for export")
		return fail(c, fiber.StatusInternalServerError, "failed to load glossary entries")
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)

	headerRow := make([]any, len(uploadColumns))
	for i, name := range uploadColumns {
		headerRow[i] = name
	}

	rows := make([][]any, 0, len(entries)+1)
	rows = append(rows, headerRow)

	for i := range entries {
		entry := &entries[i]

		published := 0
		if entry.IsPublic {
			published = 1
		}

		rows = append(rows, []any{entry.English, entry.Chinese, entry.Dutch, entry.Category, published})
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err == nil {
			err = workbook.SetSheetRow(sheet, cell, &rows[i])
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to build glossary export")
			return fail(c, fiber.StatusInternalServerError, "failed to build export file")
		}
	}

	buffer, err := workbook.WriteToBuffer()
	if err != nil {
		log.Error().Err(err).Msg("failed to write glossary export")
		return fail(c, fiber.StatusInternalServerError, "failed to build export file")
	}

	filename := fmt.Sprintf("glossary_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Set(fiber.HeaderContentType, xlsxContentType)

	return c.Send(buffer.Bytes())
}

// parseWorkbook reads the first worksheet into glossary entries. Rows
// missing the required terms are reported with their row number, fully
// empty rows are skipped. Non-administrators cannot import public entries,
// their public flags are dropped the way single creates drop them.
func parseWorkbook(r io.Reader, isAdmin bool) ([]models.Translation, []string, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.New("the file is not a valid xlsx workbook")
	}
	defer workbook.Close()

	rows, err := workbook.GetRows(workbook.GetSheetName(0))
	if err != nil {
		return nil, nil, errors.New("failed to read the first worksheet")
	}

	if len(rows) == 0 {
		return nil, nil, errors.New("the workbook is empty")
	}

	for i, want := range uploadColumns {
		if strings.ToLower(strings.TrimSpace(cellAt(rows[0], i))) != want {
			return nil, nil, fmt.Errorf("the header row must be %s", strings.Join(uploadColumns, ", "))
		}
	}

	var (
		entries   []models.Translation
		rowErrors []string
	)

	for rowNum := 2; rowNum <= len(rows); rowNum++ {
		row := rows[rowNum-1]

		english := strings.TrimSpace(cellAt(row, 0))
		chinese := strings.TrimSpace(cellAt(row, 1))

		if english == "" || chinese == "" {
			if english != "" || chinese != "" {
				rowErrors = append(rowErrors, fmt.Sprintf("row %d: english and chinese are required", rowNum))
			}
			continue
		}

		isPublic := parsePublicFlag(cellAt(row, 4))
		if isPublic && !isAdmin {
			isPublic = false
		}

		entries = append(entries, models.Translation{
			English:  english,
			Chinese:  chinese,
			Dutch:    strings.TrimSpace(cellAt(row, 2)),
			Category: strings.TrimSpace(cellAt(row, 3)),
			IsPublic: isPublic,
		})
	}

	return entries, rowErrors, nil
}

// cellAt returns the cell value at the index. GetRows drops trailing empty
// cells, short rows read as empty.
func cellAt(row []string, index int) string {
	if index >= len(row) {
		return ""
	}

	return row[index]
}

// parsePublicFlag folds the truthy spellings accepted by the upload
// template onto a bool. Everything else counts as private.
func parsePublicFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "是":
		return true
	}

	return false
}

// isAdmin reports whether the requester holds the administrator permission.
// The publishing rights of the glossary are tied to it.
func (s *Service) isAdmin(c *fiber.Ctx) bool {
	return auth.HasPermissionInContext(c, s.authService, auth.PermAdminAccess)
}

// findEntry loads the entry addressed by the :id route parameter.
func (s *Service) findEntry(c *fiber.Ctx) (*models.Translation, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return nil, errInvalidID
	}

	return controller.Get(s.db, uint64(id))
}

var errInvalidID = errors.New("invalid entry id")

func respondLookupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidID):
		return fail(c, fiber.StatusBadRequest, errInvalidID.Error())
	case errors.Is(err, controller.ErrEntryNotFound):
		return fail(c, fiber.StatusNotFound, "glossary entry not found")
	default:
		log.Error().Err(err).Msg("failed to load glossary entry")
		return fail(c, fiber.StatusInternalServerError, "failed to load glossary entry")
	}
}

func respondSaveError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, controller.ErrEnglishEmpty), errors.Is(err, controller.ErrChineseEmpty):
		return fail(c, fiber.StatusBadRequest, "english and chinese are both required")
	case errors.Is(err, controller.ErrDuplicateEntry):
		return fail(c, fiber.StatusBadRequest, controller.ErrDuplicateEntry.Error())
	default:
		log.Error().Err(err).Msg("failed to save glossary entry")
		return fail(c, fiber.StatusInternalServerError, "failed to save glossary entry")
	}
}

// entryJSON renders an entry the way the list endpoint does.
func entryJSON(entry *models.Translation) fiber.Map {
	item := fiber.Map{
		"id":         entry.ID,
		"english":    entry.English,
		"chinese":    entry.Chinese,
		"dutch":      entry.Dutch,
		"category":   entry.Category,
		"is_public":  entry.IsPublic,
		"user_id":    entry.UserID,
		"created_at": entry.CreatedAt,
	}

	if entry.User != nil {
		item["user"] = fiber.Map{
			"id":       entry.User.ID,
			"username": entry.User.Username,
		}
	}

	return item
}

// firstN returns at most the first n elements.
func firstN(values []string, n int) []string {
	if len(values) <= n {
		return values
	}

	return values[:n]
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
