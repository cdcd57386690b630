package migration202610181200

import (
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"gopkg.in/gormigrate.v1"
)

// Run is the runs table as first created.
type Run struct {
	ID        string `gorm:"primary_key"`
	Project   string
	ModelPath string
	OutputDir string
	Part      string
	Token     string
	CreatedAt time.Time
	FloatAcc  *float64
	FixedAcc  *float64
}

// RunEvent is the run_events table as first created.
type RunEvent struct {
	ID        string `gorm:"primary_key"`
	RunID     string `gorm:"index"`
	Timestamp time.Time
	Status    string
	Stage     string
	Message   string
	Code      int
}

var Migration = gormigrate.Migration{
	ID: "202610181200",
	Migrate: func(tx *gorm.DB) error {
		return tx.AutoMigrate(&Run{}, &RunEvent{}).Error
	},
	Rollback: func(tx *gorm.DB) error {
		return tx.DropTableIfExists("run_events", "runs").Error
	},
}
