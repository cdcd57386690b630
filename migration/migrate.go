// Package migration evolves the run ledger schema.
package migration

import (
	"github.com/ReconfigureIO/hlsflow/migration/migration202610181200"
	"github.com/ReconfigureIO/hlsflow/migration/migration202610191030"
	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
	"gopkg.in/gormigrate.v1"
)

// Migrations are applied in order.
var Migrations = []*gormigrate.Migration{
	&migration202610181200.Migration,
	&migration202610191030.Migration,
}

// MigrateAll applies every pending migration.
func MigrateAll(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, Migrations)
	if err := m.Migrate(); err != nil {
		return err
	}
	log.Info("migration did run successfully")
	return nil
}

// RollbackLast undoes the most recent migration.
func RollbackLast(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, Migrations).RollbackLast()
}
