package models

import (
	"github.com/jinzhu/gorm"
)

// MigrateAll creates the run ledger tables. Deployed databases go through
// the migration package instead.
func MigrateAll(db *gorm.DB) {
	db.AutoMigrate(&Run{})
	db.AutoMigrate(&RunEvent{})
	db.AutoMigrate(&RunReport{})
}
