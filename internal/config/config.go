package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// DefaultOverrideFile is looked up next to the working directory on every run.
// Its absence is not an error.
const DefaultOverrideFile = "deploy.yml"

const placeholderHost = "user@your-server"

// DeployConfig is resolved once at startup and passed explicitly into the
// orchestrator. Precedence per field: override file, then environment
// variable, then hard-coded default.
type DeployConfig struct {
	Host        string `yaml:"host"`
	AppPort     int    `yaml:"app_port"`
	RemoteDir   string `yaml:"remote_dir"`
	Image       string `yaml:"image"`
	DBContainer string `yaml:"db_container"`
	DBUser      string `yaml:"db_user"`
	DBName      string `yaml:"db_name"`

	ComposeFile   string `yaml:"compose_file"`
	EnvFile       string `yaml:"env_file"`
	MigrationsDir string `yaml:"migrations_dir"`
	HealthPath    string `yaml:"health_path"`
	LogFile       string `yaml:"log_file"`
	HistoryDB     string `yaml:"history_db"`
}

// Load builds the configuration from the override file at path (skipped if it
// does not exist), the process environment, and defaults, in that order.
func Load(path string) (*DeployConfig, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*DeployConfig, error) {
	cfg := &DeployConfig{}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	fillString(&cfg.Host, getenv("SHIPIT_HOST"), placeholderHost)
	fillInt(&cfg.AppPort, getenv("SHIPIT_APP_PORT"), 3000)
	fillString(&cfg.RemoteDir, getenv("SHIPIT_REMOTE_DIR"), "/home/deploy/app")
	fillString(&cfg.Image, getenv("SHIPIT_IMAGE"), "myapp:latest")
	fillString(&cfg.DBContainer, getenv("SHIPIT_DB_CONTAINER"), "app-db")
	fillString(&cfg.DBUser, getenv("SHIPIT_DB_USER"), "postgres")
	fillString(&cfg.DBName, getenv("SHIPIT_DB_NAME"), "appdb")

	fillString(&cfg.ComposeFile, getenv("SHIPIT_COMPOSE_FILE"), "docker-compose.yml")
	fillString(&cfg.EnvFile, getenv("SHIPIT_ENV_FILE"), ".env.production")
	fillString(&cfg.MigrationsDir, getenv("SHIPIT_MIGRATIONS_DIR"), "migrations")
	fillString(&cfg.HealthPath, getenv("SHIPIT_HEALTH_PATH"), "/health")
	fillString(&cfg.LogFile, getenv("SHIPIT_LOG_FILE"), ".shipit/deploy.log")
	fillString(&cfg.HistoryDB, getenv("SHIPIT_HISTORY_DB"), ".shipit/history.db")

	return cfg, nil
}

// HostConfigured reports whether the remote host was set to something other
// than the placeholder sentinel.
func (c *DeployConfig) HostConfigured() bool {
	return c.Host != "" && c.Host != placeholderHost
}

// HealthURL is the URL probed from the remote host itself.
func (c *DeployConfig) HealthURL() string {
	return fmt.Sprintf("http://localhost:%d%s", c.AppPort, c.HealthPath)
}

func fillString(dst *string, env, def string) {
	if *dst != "" {
		return
	}
	if env != "" {
		*dst = env
		return
	}
	*dst = def
}

func fillInt(dst *int, env string, def int) {
	if *dst != 0 {
		return
	}
	if env != "" {
		var v int
		if _, err := fmt.Sscanf(env, "%d", &v); err == nil && v > 0 {
			*dst = v
			return
		}
	}
	*dst = def
}
