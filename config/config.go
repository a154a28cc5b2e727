package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/envi"
)

// Environment variable names.
const (
	EnvEndpoint     = "ENDPOINT_URL"
	EnvDeployment   = "DEPLOYMENT_NAME"
	EnvAPIKey       = "AZURE_OPENAI_API_KEY"
	EnvAPIVersion   = "AZURE_OPENAI_API_VERSION"
	EnvSystemPrompt = "AZCHAT_SYSTEM_PROMPT"
	EnvLogDir       = "AZCHAT_LOG_DIR"
	EnvTokenLimit   = "AZCHAT_TOKEN_LIMIT"
)

// DefaultAPIVersion is used when AZURE_OPENAI_API_VERSION is unset.
const DefaultAPIVersion = "2024-05-01-preview"

// DefaultTokenLimit is the transcript size, in tokens, past which the
// chat loop warns once.
const DefaultTokenLimit = 128000

// Config holds everything needed to talk to an Azure OpenAI
// deployment and run a session.
type Config struct {
	Endpoint     string
	Deployment   string
	APIKey       string
	APIVersion   string
	SystemPrompt string
	LogDir       string
	TokenLimit   int
}

// MissingError lists required settings that were not provided.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required Azure OpenAI settings: %s", strings.Join(e.Vars, ", "))
}

// LoadEnvFile loads variables from a dotenv file without overriding
// variables already set in the environment.  With an empty path it
// loads ./.env if present; a named file must exist.
func LoadEnvFile(path string) (err error) {
	if path == "" {
		err = godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			Debug("no .env file found")
			err = nil
		}
		return
	}
	err = godotenv.Load(path)
	if err != nil {
		err = fmt.Errorf("loading %s: %w", path, err)
	}
	return
}

// Load loads envFile (see LoadEnvFile) and then reads the
// configuration from the environment.  It does not validate.
func Load(envFile string) (cfg *Config, err error) {
	defer Return(&err)
	err = LoadEnvFile(envFile)
	Ck(err)
	cfg, err = FromEnv()
	Ck(err)
	return
}

// FromEnv reads the configuration from the environment.
func FromEnv() (cfg *Config, err error) {
	cfg = &Config{
		Endpoint:     strings.TrimSpace(envi.String(EnvEndpoint, "")),
		Deployment:   strings.TrimSpace(envi.String(EnvDeployment, "")),
		APIKey:       strings.TrimSpace(envi.String(EnvAPIKey, "")),
		APIVersion:   strings.TrimSpace(envi.String(EnvAPIVersion, "")),
		SystemPrompt: envi.String(EnvSystemPrompt, ""),
		LogDir:       envi.String(EnvLogDir, "."),
		TokenLimit:   DefaultTokenLimit,
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if v := strings.TrimSpace(envi.String(EnvTokenLimit, "")); v != "" {
		cfg.TokenLimit, err = strconv.Atoi(v)
		if err != nil {
			err = fmt.Errorf("invalid %s value %q: %w", EnvTokenLimit, v, err)
			return nil, err
		}
	}
	return
}

// Validate returns a *MissingError naming every required setting that
// is empty.
func (c *Config) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, EnvEndpoint)
	}
	if c.Deployment == "" {
		missing = append(missing, EnvDeployment)
	}
	if c.APIKey == "" {
		missing = append(missing, EnvAPIKey)
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}
