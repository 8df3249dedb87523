package config

import (
	"github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime int // session lifetime in hours
}

// Config overall data structure.
type Config struct {
	DevMode    bool // enable dev mode for development
	DB         DB
	Log        logger.Log
	Title      string
	Webserver  Webserver
	Auth       Auth
	Storage    Storage
	Ingredient Ingredient
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool    // disable the panic recover middleware
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time in seconds before shutdown
	URL            string  // base url for the webserver
	Session        Session // session settings
}

// Auth groups the settings of the authentication providers.
type Auth struct {
	LocalDB LocalDB
	OIDC    auth.OIDCConfig
	LDAP    auth.LDAPConfig
}

// LocalDB toggles username and password authentication against the local
// user table.
type LocalDB struct {
	Enabled bool
}

// Storage holds the settings of the per user upload store.
type Storage struct {
	UploadDir         string   // root directory for user uploads
	MaxUploadMB       int      // single upload size limit in megabytes
	QuotaMB           int      // per user storage quota in megabytes
	AllowedExtensions []string // lowercase extensions accepted for upload
}

// Ingredient holds the settings of the ingredient reference data store.
type Ingredient struct {
	DataDir           string   // directory holding ingredient reference files
	AllowedExtensions []string // lowercase extensions accepted for reference uploads
}
