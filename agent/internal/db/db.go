package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var adb *gorm.DB

// Open connects with driver "sqlite" (dsn is a file path) or "mysql" (dsn is
// a go-sql-driver DSN) and migrates the agent tables.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := gdb.AutoMigrate(&CommandRecord{}, &DesiredSnapshot{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}

// Init opens the database and keeps it for Get.
func Init(driver, dsn string) (*gorm.DB, error) {
	gdb, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	adb = gdb
	return adb, nil
}

func Get() *gorm.DB { return adb }
