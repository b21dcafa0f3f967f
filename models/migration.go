package models

import "github.com/frh3ddy/farmacia-ops-sub000/config"

// MigrateTable creates/updates the schema for all owned tables.
func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		return
	}
	err := db.AutoMigrate(
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
		config.LogError(config.GetLogger(), "migration.go", "MigrateTable", "AutoMigrate", nil, err)
	}
}
