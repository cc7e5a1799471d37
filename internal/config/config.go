package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	UserModeSimple      = "simple"
	UserModeMultiTenant = "multi_tenant"

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"

	defaultJWTSecret = "test_secret_key_minimum_32_characters_long_for_testing_only"
)

type Config struct {
	ServerAddr string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string

	UserMode      string
	MaxResults    int
	TrackActions  bool
	MigrationsDir string
	JWTSecret     string
	JWTTTL        time.Duration
	LogLevel      string
	LogFormat     string
	LogFile       string

	// Extra fields stored in the extension column, e.g. "phone:string,vip:bool".
	UserExtraFields   string
	TenantExtraFields string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		DBDriver:      getEnv("DB_DRIVER", DriverSQLite),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "vanilla"),
		DBPath:        getEnv("DB_PATH", "vanilla.db"),
		UserMode:      getEnv("USER_MODE", UserModeSimple),
		MaxResults:    getEnvInt("MAX_RESULTS", 100),
		TrackActions:  getEnvBool("USER_ACTION_TRACKING", true),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		JWTSecret:     getEnv("JWT_SECRET", defaultJWTSecret),
		JWTTTL:        getEnvDuration("JWT_TTL", 15*time.Minute),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		LogFile:       getEnv("LOG_FILE", ""),

		UserExtraFields:   getEnv("USER_EXTRA_FIELDS", ""),
		TenantExtraFields: getEnv("TENANT_EXTRA_FIELDS", ""),
	}

	log.Println("✅ Config loaded")
	return cfg
}

// Validate rejects settings the server cannot start with. The default JWT
// secret is tolerated only with the sqlite driver.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.UserMode {
	case UserModeSimple, UserModeMultiTenant:
	default:
		return fmt.Errorf("unsupported USER_MODE %q", c.UserMode)
	}

	if c.MaxResults <= 0 {
		return fmt.Errorf("MAX_RESULTS must be positive (current: %d)", c.MaxResults)
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long (current: %d)", len(c.JWTSecret))
	}

	if c.DBDriver != DriverSQLite && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("cannot use default test secret in production")
	}

	return nil
}

func (c *Config) MultiTenant() bool {
	return c.UserMode == UserModeMultiTenant
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
