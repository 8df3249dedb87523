// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/BurntSushi/toml"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv("SLIDETRANS_CONFIG_JSON")

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config from environment")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings and fill in the defaults. The pointer
// receiver matters here, defaults have to survive into the config the
// daemon actually runs with.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	// validate webserver listening port
	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	// validate access-control-allow-origin
	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	switch c.DB.Engine {
	case "":
		c.DB.Engine = "mysql"
	case "mysql", "postgres", "sqlite":
	default:
		return errors.Wrap(ErrUnknownDBEngine, invalidErrMessage)
	}

	if c.DB.Engine == "mysql" && c.DB.Extras == "" {
		c.DB.Extras = "charset=utf8mb4&parseTime=True&loc=Local"
	}

	if c.Title == "" {
		c.Title = "SlideTrans"
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	if c.Webserver.Session.ExpiryTime == 0 {
		c.Webserver.Session.ExpiryTime = 24 // hours
	}

	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "./data/uploads"
	}

	if c.Storage.MaxUploadMB == 0 {
		c.Storage.MaxUploadMB = 200
	}

	if c.Storage.QuotaMB == 0 {
		c.Storage.QuotaMB = 1024
	}

	if len(c.Storage.AllowedExtensions) == 0 {
		c.Storage.AllowedExtensions = []string{"ppt", "pptx", "pdf"}
	}

	if c.Ingredient.DataDir == "" {
		c.Ingredient.DataDir = "./data/ingredients"
	}

	if len(c.Ingredient.AllowedExtensions) == 0 {
		c.Ingredient.AllowedExtensions = []string{"json", "xlsx", "xls", "csv", "zip", "rar", "7z"}
	}

	return nil
}
