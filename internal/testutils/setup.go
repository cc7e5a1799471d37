package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/config"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/role"
	"github.com/Kyz7/vanilla/internal/server"
	"github.com/Kyz7/vanilla/internal/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "test_secret_key_minimum_32_characters_long_for_testing_only"

// OpenDB returns a private in-memory database with the given models migrated.
func OpenDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...), "Failed to migrate test database")
	}
	return db
}

func TestDB(t *testing.T) *gorm.DB {
	return OpenDB(t, models.All()...)
}

func TestConfig(mode string) *config.Config {
	return &config.Config{
		DBDriver:     config.DriverSQLite,
		DBPath:       ":memory:",
		UserMode:     mode,
		MaxResults:   100,
		TrackActions: true,
		JWTSecret:    JWTSecret,
		JWTTTL:       15 * time.Minute,
	}
}

// SetupTestApp builds a server over a fresh database seeded with the
// default roles. mode is config.UserModeSimple or config.UserModeMultiTenant.
func SetupTestApp(t *testing.T, mode string) *server.Server {
	t.Helper()
	db := TestDB(t)
	CreateTestRoles(t, db)

	srv, err := server.New(TestConfig(mode), db, zerolog.Nop())
	require.NoError(t, err, "Failed to build server")
	return srv
}

func CreateTestRoles(t *testing.T, db *gorm.DB) {
	t.Helper()
	_, err := role.SeedDefaultRoles(context.Background(), db)
	require.NoError(t, err, "Failed to seed roles")
}

func CreateTestTenant(t *testing.T, db *gorm.DB, name string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: name}
	require.NoError(t, db.Create(tenant).Error, "Failed to create test tenant")
	return tenant
}

// CreateTestUser stores a user with the given roles, which must exist.
func CreateTestUser(t *testing.T, db *gorm.DB, email, password string, tenantID uint, roleNames ...string) *models.User {
	t.Helper()
	hashedPassword, err := utils.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Name:     "Test User",
		Email:    email,
		Password: hashedPassword,
	}
	user.SetTenant(tenantID)
	for _, name := range roleNames {
		var r models.Role
		require.NoError(t, db.Where("name = ?", name).First(&r).Error,
			"Failed to find role '%s'. Make sure CreateTestRoles was called.", name)
		user.Roles = append(user.Roles, r)
	}

	require.NoError(t, db.Create(user).Error, "Failed to create test user")
	require.NoError(t, db.Preload("Roles.Permissions").First(user, user.ID).Error)
	return user
}

// ActorContext binds u to a background context the way the auth
// middleware does for requests.
func ActorContext(u *models.User) context.Context {
	return access.WithActor(context.Background(), u)
}

func GetAuthToken(t *testing.T, userID uint) string {
	t.Helper()
	token, err := utils.NewSigner(JWTSecret, 15*time.Minute).Generate(userID)
	assert.NoError(t, err, "Failed to generate test token")
	return token
}

func MakeRequest(app *fiber.App, method, url string, body interface{}, token string) (*httptest.ResponseRecorder, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()

	resp, err := app.Test(req, -1)
	if err != nil {
		return rec, err
	}

	rec.Code = resp.StatusCode

	io.Copy(rec.Body, resp.Body)
	resp.Body.Close()

	return rec, nil
}

// MakeRawRequest sends a bodyless request with the given headers.
func MakeRawRequest(app *fiber.App, method, url string, headers map[string]string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, url, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	resp, err := app.Test(req, -1)
	if err != nil {
		return rec, err
	}
	rec.Code = resp.StatusCode
	io.Copy(rec.Body, resp.Body)
	resp.Body.Close()
	return rec, nil
}

func ParseResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	if resp.Body.Len() == 0 {
		t.Log("Warning: Response body is empty")
		return
	}

	err := json.Unmarshal(resp.Body.Bytes(), v)
	if err != nil {
		t.Logf("Response body: %s", resp.Body.String())
		assert.NoError(t, err, "Failed to parse response")
	}
}

type StandardResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data"`
	Error   *ErrorDetail `json:"error"`
	Meta    *Meta        `json:"meta"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func AssertSuccess(t *testing.T, resp *httptest.ResponseRecorder) {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	assert.True(t, result.Success, "Expected success response")
	assert.Empty(t, result.Error, "Expected no error")
}

func AssertError(t *testing.T, resp *httptest.ResponseRecorder, expectedCode string) {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	assert.False(t, result.Success, "Expected error response")
	if assert.NotNil(t, result.Error, "Expected error object") {
		assert.Equal(t, expectedCode, result.Error.Code, "Error code mismatch")
	}
}
