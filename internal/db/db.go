package db

import (
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the ledger database. DSNs starting with "sqlite:" or "file:"
// use the pure-go sqlite driver, anything else is treated as a MySQL DSN.
//
//	sqlite:healme-chat.db
//	app:apppass@tcp(127.0.0.1:3306)/healme_chat?charset=utf8mb4&parseTime=true&loc=Local
func Connect(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return gorm.Open(gormsqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), cfg)
	case strings.HasPrefix(dsn, "file:"):
		return gorm.Open(gormsqlite.Open(dsn), cfg)
	default:
		return gorm.Open(mysql.Open(dsn), cfg)
	}
}
