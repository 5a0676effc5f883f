package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/sirupsen/logrus"
	otgorm "github.com/smacker/opentracing-gorm"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite3"
)

var ActiveDataSourceManager *DataSourceManager

type DatabaseConfig struct {
	DriverType string
	DriverArgs string

	// MaxOpenConns limits the pool, in-memory sqlite databases must use a single connection.
	MaxOpenConns int
}

type DataSourceManager struct {
	gormDB *gorm.DB

	DatabaseConfig *DatabaseConfig
}

func (m *DataSourceManager) Start() error {
	if m.DatabaseConfig == nil {
		return errors.New("database config is required")
	}
	db, err := connect(m.DatabaseConfig)
	if err != nil {
		return err
	}
	otgorm.AddGormCallbacks(db)
	m.gormDB = db
	if os.Getenv("GIN_MODE") != "release" {
		m.gormDB.LogMode(true)
	}
	return nil
}

func (m *DataSourceManager) Stop() {
	if m.gormDB != nil {
		if err := m.gormDB.Close(); err != nil {
			logrus.Warnf("failed to close DB: %v", err)
		}
		m.gormDB = nil
	}
}

// GormDB returns a fresh session, the span found in ctx (if any) becomes the parent of the sql spans.
func (m *DataSourceManager) GormDB(ctx context.Context) *gorm.DB {
	if m.gormDB == nil {
		return nil
	}
	if ctx == nil {
		return m.gormDB.New()
	}
	return otgorm.SetSpanToGorm(ctx, m.gormDB.New())
}

func (m *DataSourceManager) IsMysql() bool {
	return m.DatabaseConfig != nil && m.DatabaseConfig.DriverType == DriverMysql
}

func connect(config *DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(config.DriverType, config.DriverArgs)
	if err != nil {
		return nil, err
	}
	if config.MaxOpenConns > 0 {
		db.DB().SetMaxOpenConns(config.MaxOpenConns)
	}
	err = db.DB().Ping()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// PrepareMysqlDatabase creates the database named in the dsn if it does not exist yet.
func PrepareMysqlDatabase(driverArgs string) error {
	cfg, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	dbName := cfg.DBName
	if dbName == "" {
		return errors.New("database name is missing in dsn")
	}
	cfg.DBName = ""

	db, err := gorm.Open(DriverMysql, cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", dbName)).Error
}
