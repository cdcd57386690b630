package migration202610191030

import (
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"gopkg.in/gormigrate.v1"
)

// Run adds the published artifact locations.
type Run struct {
	ArtifactURL string
	ReportURL   string
}

// RunReport holds the utilisation summary of a run.
type RunReport struct {
	ID      string `gorm:"primary_key"`
	RunID   string `gorm:"index"`
	Version string
	Report  string `sql:"type:JSONB NOT NULL DEFAULT '{}'::JSONB"`
}

var Migration = gormigrate.Migration{
	ID: "202610191030",
	Migrate: func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&Run{}).Error; err != nil {
			return err
		}
		return tx.AutoMigrate(&RunReport{}).Error
	},
	Rollback: func(tx *gorm.DB) error {
		err := tx.DropTableIfExists("run_reports").Error
		if err != nil {
			return err
		}
		err = tx.Table("runs").DropColumn("artifact_url").Error
		if err != nil {
			return err
		}
		return tx.Table("runs").DropColumn("report_url").Error
	},
}
