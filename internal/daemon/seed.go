package daemon

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/db/models"
)

// permissionCatalog lists every permission the handlers check. Seeding keeps
// the permissions table in sync with the constants in the auth package.
var permissionCatalog = []models.Permission{
	{Name: auth.PermAdminAccess, Description: "Access the administration APIs"},
	{Name: auth.PermUserManage, Description: "Review registrations and manage user accounts"},
	{Name: auth.PermFileUpload, Description: "Upload presentation and document files"},
	{Name: auth.PermFileDownload, Description: "Download stored files and datasets"},
	{Name: auth.PermTranslationUse, Description: "Run the translation workflow"},
	{Name: auth.PermPDFAnnotate, Description: "Annotate PDF documents"},
	{Name: auth.PermBatchProcess, Description: "Run batch operations such as spreadsheet imports"},
	{Name: auth.PermGlossaryManage, Description: "Manage translation memory entries"},
	{Name: auth.PermStopWordsManage, Description: "Manage personal stop word lists"},
	{Name: auth.PermIngredientSearch, Description: "Search the ingredient reference data"},
	{Name: auth.PermLogsView, Description: "View and query application log files"},
	{Name: auth.PermSSOLogin, Description: "Sign in through an external identity provider"},
}

// userGrants are the permissions of the built-in "user" role. Administration,
// user review and log access stay with the "admin" role.
var userGrants = []string{
	auth.PermFileUpload,
	auth.PermFileDownload,
	auth.PermTranslationUse,
	auth.PermPDFAnnotate,
	auth.PermGlossaryManage,
	auth.PermStopWordsManage,
	auth.PermIngredientSearch,
}

// seed creates the permission catalog, the built-in roles and the initial
// administrator account. It runs on every start and only fills in what is
// missing.
func seed(db *gorm.DB) error {
	perms, err := seedPermissions(db)
	if err != nil {
		return err
	}

	adminGrants := make([]string, 0, len(permissionCatalog))
	for _, entry := range permissionCatalog {
		adminGrants = append(adminGrants, entry.Name)
	}

	adminRole, err := seedRole(db, models.RoleAdmin,
		"Full access to every feature including administration", perms, adminGrants)
	if err != nil {
		return err
	}

	if _, err = seedRole(db, models.RoleUser,
		"Default role of approved accounts", perms, userGrants); err != nil {
		return err
	}

	return seedAdminUser(db, adminRole)
}

func seedPermissions(db *gorm.DB) (map[string]models.Permission, error) {
	perms := make(map[string]models.Permission, len(permissionCatalog))

	for _, entry := range permissionCatalog {
		resource, action, _ := strings.Cut(entry.Name, ".")

		perm := models.Permission{
			Name:        entry.Name,
			Resource:    resource,
			Action:      action,
			Description: entry.Description,
		}

		if err := db.Where(models.Permission{Name: entry.Name}).FirstOrCreate(&perm).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to seed permission %s", entry.Name)
		}

		perms[entry.Name] = perm
	}

	return perms, nil
}

func seedRole(
	db *gorm.DB,
	name, description string,
	perms map[string]models.Permission,
	grants []string,
) (*models.Role, error) {
	role := models.Role{
		Name:        name,
		Description: description,
		IsSystem:    true,
	}

	if err := db.Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to seed role %s", name)
	}

	for _, grant := range grants {
		link := models.RolePermission{RoleID: role.ID, PermissionID: perms[grant].ID}

		err := db.Where(models.RolePermission{
			RoleID:       link.RoleID,
			PermissionID: link.PermissionID,
		}).FirstOrCreate(&link).Error
		if err != nil {
			return nil, errors.Wrapf(err, "failed to grant %s to role %s", grant, name)
		}
	}

	return &role, nil
}

// seedAdminUser creates the first administrator account when the user table
// is still empty, so a fresh install can be signed into at all.
func seedAdminUser(db *gorm.DB, adminRole *models.Role) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return errors.Wrap(err, "failed to count users")
	}

	if count > 0 {
		return nil
	}

	admin := models.User{
		Username:   "admin",
		Password:   models.HashPassword("admin123"),
		Status:     models.StatusApproved,
		AuthSource: models.AuthSourceLocal,
		RoleID:     &adminRole.ID,
	}

	if err := db.Create(&admin).Error; err != nil {
		return errors.Wrap(err, "failed to create the initial admin account")
	}

	log.Warn().Str("username", admin.Username).
		Msg("created the initial admin account with the default password, change it after the first login")

	return nil
}
