package store

import "fmt"

// dialect holds the statements that differ between backends.
type dialect struct {
	name string
	// sqlDriver is the database/sql driver name.
	sqlDriver string
	schema    string
	insert    string
	columns   string
	// types maps each optional column to its DDL type for ALTER TABLE.
	types map[string]string
}

const insertColumns = `name, job_title, company, industry, job_function, operates_in, run_id, scraped_at`

var sqliteDialect = dialect{
	name:      "sqlite",
	sqlDriver: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS attendees (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL UNIQUE,
	job_title    TEXT,
	company      TEXT,
	industry     TEXT,
	job_function TEXT,
	operates_in  TEXT,
	run_id       TEXT,
	scraped_at   INTEGER
)`,
	insert: `INSERT INTO attendees (` + insertColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO NOTHING`,
	columns: `SELECT name FROM pragma_table_info('attendees')`,
	types: map[string]string{
		"job_title":    "TEXT",
		"company":      "TEXT",
		"industry":     "TEXT",
		"job_function": "TEXT",
		"operates_in":  "TEXT",
		"run_id":       "TEXT",
		"scraped_at":   "INTEGER",
	},
}

var mysqlDialect = dialect{
	name:      "mysql",
	sqlDriver: "mysql",
	schema: `CREATE TABLE IF NOT EXISTS attendees (
	id           BIGINT AUTO_INCREMENT PRIMARY KEY,
	name         VARCHAR(255) NOT NULL UNIQUE,
	job_title    TEXT,
	company      TEXT,
	industry     TEXT,
	job_function TEXT,
	operates_in  TEXT,
	run_id       VARCHAR(36),
	scraped_at   BIGINT
) CHARACTER SET utf8mb4`,
	insert: `INSERT IGNORE INTO attendees (` + insertColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	columns: `SELECT COLUMN_NAME FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = 'attendees'`,
	types: map[string]string{
		"job_title":    "TEXT",
		"company":      "TEXT",
		"industry":     "TEXT",
		"job_function": "TEXT",
		"operates_in":  "TEXT",
		"run_id":       "VARCHAR(36)",
		"scraped_at":   "BIGINT",
	},
}

// optionalColumns is the order in which missing columns are added.
var optionalColumns = []string{"job_title", "company", "industry", "job_function", "operates_in", "run_id", "scraped_at"}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "mysql":
		return mysqlDialect, nil
	default:
		return dialect{}, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}
}
