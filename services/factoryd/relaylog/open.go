package relaylog

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres when databaseURL is set and to the sqlite file
// at sqlitePath otherwise, then migrates the schema.
func Open(databaseURL, sqlitePath string) (*Log, error) {
	var dialector gorm.Dialector
	switch {
	case strings.TrimSpace(databaseURL) != "":
		dialector = postgres.Open(databaseURL)
	case strings.TrimSpace(sqlitePath) != "":
		dialector = sqlite.Open(sqlitePath)
	default:
		return nil, fmt.Errorf("relaylog: database url or sqlite path required")
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("relaylog: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("relaylog: migrate: %w", err)
	}
	return New(db), nil
}
