// +build integration

package models

import (
	"os"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // postgres driver
)

var _db *gorm.DB

func init() {
	db, err := gorm.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		panic("failed to connect database: " + err.Error())
	}
	MigrateAll(db)
	_db = db
}

// RunTransaction runs ops inside a transaction that is always rolled back.
func RunTransaction(ops func(db *gorm.DB)) {
	tx := _db.Begin()
	defer tx.Rollback()
	ops(tx)
}
