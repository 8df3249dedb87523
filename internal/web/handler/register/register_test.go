package register

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/db/models"
)

func setupTest(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Role{}, &models.User{}))

	require.NoError(t, db.Create(&models.Role{Name: models.RoleUser, IsSystem: true}).Error)

	app := fiber.New()

	s := &Service{}
	s.Init(app, &config.Config{}, db)

	return app, db
}

func performRegister(t *testing.T, app *fiber.App, body map[string]string) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, Path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

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

func TestRegister(t *testing.T) {
	app, db := setupTest(t)

	testCases := []struct {
		name        string
		body        map[string]string
		wantStatus  int
		wantMessage string
	}{
		{
			name: "successful registration",
			body: map[string]string{
				"username":     "newcomer",
				"email":        "newcomer@example.com",
				"password":     "secret123",
				"display_name": "New Comer",
			},
			wantStatus:  fiber.StatusCreated,
			wantMessage: "registration submitted, awaiting approval",
		},
		{
			name:        "username too short",
			body:        map[string]string{"username": "ab", "email": "ab@example.com", "password": "secret123"},
			wantStatus:  fiber.StatusBadRequest,
			wantMessage: "username must be between 3 and 20 characters",
		},
		{
			name: "username too long",
			body: map[string]string{
				"username": strings.Repeat("x", 21),
				"email":    "long@example.com",
				"password": "secret123",
			},
			wantStatus:  fiber.StatusBadRequest,
			wantMessage: "username must be between 3 and 20 characters",
		},
		{
			name:        "password too short",
			body:        map[string]string{"username": "shorty", "email": "shorty@example.com", "password": "five5"},
			wantStatus:  fiber.StatusBadRequest,
			wantMessage: "password must be at least 6 characters",
		},
		{
			name:        "email without at sign",
			body:        map[string]string{"username": "mailless", "email": "not-an-email", "password": "secret123"},
			wantStatus:  fiber.StatusBadRequest,
			wantMessage: "email address is invalid",
		},
		{
			name:        "duplicate username",
			body:        map[string]string{"username": "newcomer", "email": "other@example.com", "password": "secret123"},
			wantStatus:  fiber.StatusConflict,
			wantMessage: "username or email is already taken",
		},
		{
			name:        "duplicate email",
			body:        map[string]string{"username": "someoneelse", "email": "newcomer@example.com", "password": "secret123"},
			wantStatus:  fiber.StatusConflict,
			wantMessage: "username or email is already taken",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performRegister(t, app, tc.body)

			assert.Equal(t, tc.wantStatus, resp.StatusCode)

			body := decodeBody(t, resp)
			assert.Equal(t, tc.wantMessage, body["message"])
			assert.Empty(t, resp.Cookies(), "registration must not create a session")
		})
	}

	// the stored account is pending with the seeded default role
	var user models.User
	require.NoError(t, db.Where("username = ?", "newcomer").First(&user).Error)

	assert.Equal(t, models.StatusPending, user.Status)
	assert.Equal(t, models.AuthSourceLocal, user.AuthSource)
	assert.Equal(t, "New Comer", user.DisplayName)
	require.NotNil(t, user.RoleID)
	assert.True(t, user.VerifyPassword("secret123"))
}

func TestRegisterWithoutSeededRole(t *testing.T) {
	app, db := setupTest(t)
	require.NoError(t, db.Where("name = ?", models.RoleUser).Delete(&models.Role{}).Error)

	resp := performRegister(t, app, map[string]string{
		"username": "roleless",
		"email":    "roleless@example.com",
		"password": "secret123",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var user models.User
	require.NoError(t, db.Where("username = ?", "roleless").First(&user).Error)
	assert.Nil(t, user.RoleID)
}
