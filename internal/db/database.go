package db

import (
	"os"
	"path/filepath"

	"github.com/InsideOutbtc/nock-bridge/internal/config"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DatabaseManager struct {
	bridgeDb *gorm.DB
	auditDb  *gorm.DB
}

func NewDatabaseManager() *DatabaseManager {
	dm := &DatabaseManager{}
	dm.initDB(config.AppConfig.DbDir)
	return dm
}

// NewDatabaseManagerAt opens the databases under the given directory, used by tests.
func NewDatabaseManagerAt(dbDir string) *DatabaseManager {
	dm := &DatabaseManager{}
	dm.initDB(dbDir)
	return dm
}

func (dm *DatabaseManager) initDB(dbDir string) {
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	bridgePath := filepath.Join(dbDir, "bridge_state.db")
	bridgeDb, err := gorm.Open(sqlite.Open(bridgePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to bridge database: %v", err)
	}
	dm.bridgeDb = bridgeDb
	log.Debugf("Bridge database connected successfully, path: %s", bridgePath)

	auditPath := filepath.Join(dbDir, "bridge_audit.db")
	auditDb, err := gorm.Open(sqlite.Open(auditPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to audit database: %v", err)
	}
	dm.auditDb = auditDb
	log.Debugf("Audit database connected successfully, path: %s", auditPath)

	dm.autoMigrate()
	log.Debugf("Database migration completed successfully")
}

func (dm *DatabaseManager) autoMigrate() {
	if err := dm.bridgeDb.AutoMigrate(
		&BridgeState{},
		&DepositRecord{},
		&TokenBalance{},
		&ReleaseRequest{},
	); err != nil {
		log.Fatalf("Failed to migrate bridge database: %v", err)
	}
	if err := dm.auditDb.AutoMigrate(
		&WithdrawalRecord{},
		&PricePoint{},
		&BridgeStats{},
	); err != nil {
		log.Fatalf("Failed to migrate audit database: %v", err)
	}
}

func (dm *DatabaseManager) GetBridgeDB() *gorm.DB {
	return dm.bridgeDb
}

func (dm *DatabaseManager) GetAuditDB() *gorm.DB {
	return dm.auditDb
}
