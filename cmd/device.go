package cmd

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/dr-electrique/rapport-server/config"
	"github.com/dr-electrique/rapport-server/database/dbcore"
	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/database/repo/devices"
	"github.com/dr-electrique/rapport-server/internal/auth"
)

// deviceCmd manages field device credentials.
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage field devices",
}

// deviceAddCmd registers a device and prints its generated key once.
var deviceAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new device and print its key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDeviceAdd(args[0]); err != nil {
			log.Fatalf("Failed to add device: %v", err)
		}
	},
}

func init() {
	deviceCmd.AddCommand(deviceAddCmd)
	rootCmd.AddCommand(deviceCmd)
}

func runDeviceAdd(name string) error {
	config.InitConfig()
	if err := dbcore.Init(config.Get()); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	db := dbcore.Get()
	if err := dbcore.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	key := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := auth.HashKey(key)
	if err != nil {
		return err
	}

	repo := devices.NewRepository(db)
	device := &models.Device{
		Name:    name,
		KeyHash: hash,
		Active:  true,
	}
	if err := repo.Create(context.Background(), device); err != nil {
		return err
	}

	fmt.Printf("Device %q registered (id %d)\n", name, device.ID)
	fmt.Println("Device key (shown once, store it on the tablet):")
	fmt.Println(key)
	return nil
}
