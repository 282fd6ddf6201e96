package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ChuckD30/lyricist/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	dbCfg := cfg.GetDBConfig()
	if !dbCfg.Enabled {
		return errors.New("database not configured (set DB_HOST and DB_NAME)")
	}

	// Initialize applies the migrations.
	if err := database.Initialize(&database.Config{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		DBName:   dbCfg.Name,
		SSLMode:  dbCfg.SSLMode,
	}); err != nil {
		return err
	}
	defer database.Close()

	logger.Info().Str("database", dbCfg.Name).Msg("schema up to date")
	return nil
}
