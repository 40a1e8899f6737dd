package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/dr-electrique/rapport-server/config"
	"github.com/dr-electrique/rapport-server/database/dbcore"
)

// migrateCmd runs schema migration and exits.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migration",
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig()
		if err := dbcore.Init(config.Get()); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := dbcore.AutoMigrate(dbcore.Get()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
