package main

import (
	"github.com/ReconfigureIO/hlsflow/config"
	"github.com/ReconfigureIO/hlsflow/handlers/api"
	"github.com/ReconfigureIO/hlsflow/migration"
	"github.com/ReconfigureIO/hlsflow/models"
	"github.com/ReconfigureIO/hlsflow/routes"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func setupDB() (*gorm.DB, error) {
	db, err := config.SetupDB(conf)
	if err != nil {
		log.WithError(err).Error("failed to connect to database")
		return nil, err
	}
	return db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run ledger and receive stage events",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			db, err := setupDB()
			if err != nil {
				exitWithErr("error connecting to db")
			}
			defer db.Close()

			if conf.Production() {
				gin.SetMode(gin.ReleaseMode)
			}
			r := gin.Default()
			r.GET("/health", func(c *gin.Context) {
				if err := db.DB().Ping(); err != nil {
					c.String(500, "error connecting to db")
					return
				}
				c.String(200, "OK")
			})
			routes.SetupRoutes(r, api.Run{
				Repo:    models.RunDataSource(db),
				Storage: storageService(conf),
			})

			log.WithField("port", conf.Port).Info("serving")
			if err := r.Run(":" + conf.Port); err != nil {
				exitWithErr(err.Error())
			}
		},
	}
}

func migrateCmd() *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the run ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			db, err := setupDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if rollback {
				return migration.RollbackLast(db)
			}
			return migration.MigrateAll(db)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "undo the last migration")
	return cmd
}
