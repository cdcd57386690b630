package config

import (
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	log "github.com/sirupsen/logrus"
)

type GormLogger struct{}

func (*GormLogger) Print(v ...interface{}) {
	if len(v) == 0 {
		return
	}
	if v[0] == "sql" && len(v) > 3 {
		log.WithFields(log.Fields{"module": "gorm", "type": "sql"}).Debug(v[3])
	}
	if v[0] == "log" && len(v) > 2 {
		log.WithFields(log.Fields{"module": "gorm", "type": "log"}).Print(v[2])
	}
}

// SetupDB opens the run ledger database.
func SetupDB(conf *Config) (*gorm.DB, error) {
	db, err := gorm.Open("postgres", conf.DbUrl)
	if err != nil {
		return nil, err
	}
	db.SetLogger(&GormLogger{})

	if !conf.Production() {
		db.LogMode(true)
	}
	return db, nil
}
