package models

import (
	"os"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens the integration database. These tests need a real MySQL
// instance and are gated behind INTEGRATION_TESTS=1; each test isolates its
// rows under a fresh business id.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run database tests")
	}
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	err = db.AutoMigrate(
		&Location{},
		&Product{},
		&SupplierCost{},
		&CatalogMapping{},
		&Cutover{},
		&CutoverLock{},
		&ExtractionSession{},
		&ExtractionBatch{},
		&CostApproval{},
		&InventoryBatch{},
	)
	if err != nil {
		t.Fatalf("migrate test schema: %v", err)
	}
	return db
}
