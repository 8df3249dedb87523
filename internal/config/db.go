package config

// DB implement the database settings.
type DB struct {
	Engine   string // database engine, one of mysql, postgres or sqlite
	Database string // database name, or the file path for sqlite
	Host     string // database host
	Port     int    // database port
	User     string // database user
	Password string // database password
	Extras   string // extra driver parameters appended to the DSN
}
