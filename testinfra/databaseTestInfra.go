package testinfra

import (
	"os"
	"strings"

	"backoffice/persistence"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager
}

// StartTestDatabase starts an isolated database for one test.
// A shared in-memory sqlite database is used unless TEST_MYSQL_SERVICE=root:root@(127.0.0.1:3306) is set.
func StartTestDatabase(baseName string) *TestDatabase {
	if os.Getenv("TEST_MYSQL_SERVICE") != "" {
		return StartMysqlTestDatabase(baseName)
	}
	return StartSqliteTestDatabase(baseName)
}

func StopTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	if testDatabase.DS.IsMysql() {
		StopMysqlTestDatabase(testDatabase)
		return
	}
	testDatabase.DS.Stop()
}

func testDatabaseName(baseName string) string {
	return baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func StartSqliteTestDatabase(baseName string) *TestDatabase {
	databaseName := testDatabaseName(baseName)
	dbConfig := &persistence.DatabaseConfig{
		DriverType:   persistence.DriverSqlite,
		DriverArgs:   "file:" + databaseName + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v\n", err)
	}
	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StartMysqlTestDatabase(baseName string) *TestDatabase {
	mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE")
	if mysqlSvc == "" {
		mysqlSvc = "root:root@(127.0.0.1:3306)"
	}
	databaseName := testDatabaseName(baseName)

	dbConfig := &persistence.DatabaseConfig{
		DriverType: persistence.DriverMysql,
		DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
	}

	// create database (no conflict)
	if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
		logrus.Fatalf("failed to prepare database %v\n", err)
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		logrus.Fatalf("database connection failed %v\n", err)
	}

	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StopMysqlTestDatabase(testDatabase *TestDatabase) {
	if testDatabase != nil && testDatabase.DS != nil {
		if db := testDatabase.DS.GormDB(nil); db != nil {
			if err := db.Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
				logrus.Warnln("failed to drop test database: " + testDatabase.TestDatabaseName)
			} else {
				logrus.Infoln("test database " + testDatabase.TestDatabaseName + " dropped")
			}
		}
		testDatabase.DS.Stop()
	}
}
