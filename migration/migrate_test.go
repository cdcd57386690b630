// +build integration

package migration

import (
	"os"
	"testing"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
)

func TestMigrateAll(t *testing.T) {
	db, err := gorm.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	tx := db.Begin()
	defer tx.Rollback()
	if err := MigrateAll(tx); err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"runs", "run_events", "run_reports"} {
		if !tx.HasTable(table) {
			t.Errorf("table %s was not created", table)
		}
	}
	if !tx.Dialect().HasColumn("runs", "artifact_url") {
		t.Error("runs.artifact_url was not added")
	}
}
