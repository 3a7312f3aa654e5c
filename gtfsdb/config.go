package gtfsdb

import "shiftplanner.ebus.dev/internal/appconf"

// Config selects the database driver and location.
type Config struct {
	// Driver is sqlite3 (mattn, CGo), sqlite (modernc, pure Go) or pgx.
	Driver  string
	DBPath  string
	Env     appconf.Environment
	verbose bool
}

func NewConfig(driver, dbPath string, env appconf.Environment, verbose bool) Config {
	if driver == "" {
		driver = "sqlite3"
	}
	return Config{
		Driver:  driver,
		DBPath:  dbPath,
		Env:     env,
		verbose: verbose,
	}
}

func (c Config) dialect() Dialect {
	if c.Driver == "pgx" {
		return DialectPostgres
	}
	return DialectSQLite
}

func (c Config) isSQLite() bool {
	return c.dialect() == DialectSQLite
}
