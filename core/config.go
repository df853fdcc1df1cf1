package core

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageFirestore = "firestore"
	StoragePostgres  = "postgres"
	StorageMemory    = "memory"
)

type (
	Config struct {
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		Env                       string
		Build                     string
		RollbarToken              string
		DefaultFromEmail          string
		FrontendBaseURL           string
		SendgridAPIKey            string
		GoogleClientID            string
		PasswordResetTimeoutDelta time.Duration

		Log      LogConfig
		Server   ServerConfig
		Storage  StorageConfig
		Database DatabaseConfig
	}

	LogConfig struct {
		File       string // rotated through lumberjack when set
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	StorageConfig struct {
		Backend                  string
		FirestoreProjectID       string
		FirestoreCredentialsFile string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}
)

// Address returns the database host:port.
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Hifdh")
	v.SetDefault("secretKey", "0x9k$2-hifdh)ql+4=zv&sabak(7d!hor)#*c2(#yg4h^$cegm2")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("googleClientID", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", 100)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAgeDays", 28)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("storage.backend", StorageFirestore)
	v.SetDefault("storage.firestoreProjectID", "")
	v.SetDefault("storage.firestoreCredentialsFile", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "hifdh")
	v.SetDefault("database.user", "hifdh")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
}

// NewConfig loads the configuration of the current ENV (DEV by default; TEST, QA or PROD).
// Values come from, in order of precedence: ENV-prefixed environment variables
// (eg. PROD_SERVER_HOST), config/.env.<env> and the defaults.
func NewConfig() *Config {
	conf, err := LoadConfig(os.Getenv("ENV"), Getwd())
	if err != nil {
		panic(err)
	}
	return conf
}

// LoadConfig is NewConfig with an explicit env and working directory.
func LoadConfig(env, workDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env = strings.ToUpper(strings.TrimSpace(env))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("debug", false)
		v.SetDefault("testMode", true)
		v.SetDefault("storage.backend", StorageMemory)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		Env:                       env,
		Build:                     v.GetString("build"),
		RollbarToken:              v.GetString("rollbarToken"),
		DefaultFromEmail:          v.GetString("defaultFromEmail"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		SendgridAPIKey:            v.GetString("sendgridAPIKey"),
		GoogleClientID:            v.GetString("googleClientID"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.maxSizeMB"),
			MaxBackups: v.GetInt("log.maxBackups"),
			MaxAgeDays: v.GetInt("log.maxAgeDays"),
		},
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Storage: StorageConfig{
			Backend:                  strings.ToLower(v.GetString("storage.backend")),
			FirestoreProjectID:       v.GetString("storage.firestoreProjectID"),
			FirestoreCredentialsFile: v.GetString("storage.firestoreCredentialsFile"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
	}

	switch conf.Storage.Backend {
	case StorageFirestore, StoragePostgres, StorageMemory:
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
	return conf, nil
}

// Getwd returns the module root: the closest parent of the working directory holding a go.mod,
// or the working directory itself.
func Getwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}
