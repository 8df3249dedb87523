package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, migrate(db), "failed to migrate test database")

	return db
}

// grantNames returns the permission names granted to the named role.
func grantNames(t *testing.T, db *gorm.DB, roleName string) []string {
	t.Helper()

	var role models.Role
	require.NoError(t, db.Where("name = ?", roleName).First(&role).Error)

	var names []string
	err := db.Model(&models.Permission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", role.ID).
		Pluck("permissions.name", &names).Error
	require.NoError(t, err)

	return names
}

func TestSeed(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, seed(db))

	var permCount int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	assert.Equal(t, int64(len(permissionCatalog)), permCount)

	// the name splits into the resource and action columns
	var upload models.Permission
	require.NoError(t, db.Where("name = ?", auth.PermFileUpload).First(&upload).Error)
	assert.Equal(t, "file", upload.Resource)
	assert.Equal(t, "upload", upload.Action)
	assert.NotEmpty(t, upload.Description)

	allNames := make([]string, 0, len(permissionCatalog))
	for _, entry := range permissionCatalog {
		allNames = append(allNames, entry.Name)
	}

	assert.ElementsMatch(t, allNames, grantNames(t, db, models.RoleAdmin))
	assert.ElementsMatch(t, userGrants, grantNames(t, db, models.RoleUser))

	var adminRole, userRole models.Role
	require.NoError(t, db.Where("name = ?", models.RoleAdmin).First(&adminRole).Error)
	require.NoError(t, db.Where("name = ?", models.RoleUser).First(&userRole).Error)
	assert.True(t, adminRole.IsSystem)
	assert.True(t, userRole.IsSystem)

	var admin models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)
	assert.Equal(t, models.StatusApproved, admin.Status)
	assert.Equal(t, models.AuthSourceLocal, admin.AuthSource)
	assert.True(t, admin.VerifyPassword("admin123"))
	require.NotNil(t, admin.RoleID)
	assert.Equal(t, adminRole.ID, *admin.RoleID)
}

func TestSeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, seed(db))
	require.NoError(t, seed(db))

	var permCount, roleCount, linkCount, userCount int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	require.NoError(t, db.Model(&models.Role{}).Count(&roleCount).Error)
	require.NoError(t, db.Model(&models.RolePermission{}).Count(&linkCount).Error)
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)

	assert.Equal(t, int64(len(permissionCatalog)), permCount)
	assert.Equal(t, int64(2), roleCount)
	assert.Equal(t, int64(len(permissionCatalog)+len(userGrants)), linkCount)
	assert.Equal(t, int64(1), userCount)
}

func TestSeedKeepsExistingUsers(t *testing.T) {
	db := setupTestDB(t)

	existing := models.User{
		Username:   "earlybird",
		Status:     models.StatusApproved,
		AuthSource: models.AuthSourceLocal,
	}
	require.NoError(t, db.Create(&existing).Error)

	require.NoError(t, seed(db))

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	assert.Equal(t, int64(1), userCount, "no admin account next to existing users")

	err := db.Where("username = ?", "admin").First(&models.User{}).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
