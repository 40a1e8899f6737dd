package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/dr-electrique/rapport-server/config"
	"github.com/dr-electrique/rapport-server/database/dbcore"
	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/database/repo/photos"
	"github.com/dr-electrique/rapport-server/internal/worker"
	"github.com/dr-electrique/rapport-server/storage"
)

// cleanupCmd removes storage objects no photo row references anymore.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete orphan storage objects",
	Long: `Delete storage objects that no photo row references.
Orphans appear when an upload succeeded but the matching metadata insert
never did, or when a rapport rollback raced an in-flight upload.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if err := runCleanup(dryRun); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().Bool("dry-run", false, "Only show what would be deleted, don't actually delete")
}

func runCleanup(dryRun bool) error {
	config.InitConfig()
	cfg := config.Get()

	if err := dbcore.Init(cfg); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	db := dbcore.Get()

	storageFactory, err := storage.NewFactory(storage.Config{
		Type:     cfg.StorageType,
		Settings: cfg.StorageSettings(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	provider := storageFactory.GetDefault()

	ctx := context.Background()

	// Referenced keys: originals plus generated thumbnails.
	photosRepo := photos.NewRepository(db)
	paths, err := photosRepo.AllStoragePaths(ctx)
	if err != nil {
		return err
	}
	var thumbPaths []string
	if err := db.WithContext(ctx).Model(&models.Photo{}).
		Where("thumb_path <> ''").
		Pluck("thumb_path", &thumbPaths).Error; err != nil {
		return fmt.Errorf("failed to collect thumbnail paths: %w", err)
	}

	referenced := make(map[string]bool, 2*len(paths)+len(thumbPaths))
	for _, p := range paths {
		referenced[p] = true
		// Thumbnails may exist before their row update landed.
		referenced[worker.ThumbKey(p)] = true
	}
	for _, p := range thumbPaths {
		referenced[p] = true
	}

	keys, err := provider.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list storage objects: %w", err)
	}

	var orphans []string
	for _, key := range keys {
		if referenced[key] {
			continue
		}
		orphans = append(orphans, key)
		if dryRun {
			log.Printf("[DRY-RUN] Would delete orphan object: %s", key)
		}
	}

	if !dryRun && len(orphans) > 0 {
		if err := provider.Delete(ctx, orphans...); err != nil {
			return fmt.Errorf("failed to delete orphan objects: %w", err)
		}
	}

	fmt.Println("========================================")
	if dryRun {
		fmt.Println("           [DRY RUN MODE]")
	}
	fmt.Printf("Objects in storage:   %d\n", len(keys))
	fmt.Printf("Referenced objects:   %d\n", len(referenced))
	fmt.Printf("Orphan objects found: %d\n", len(orphans))
	if !dryRun {
		fmt.Printf("Orphan objects deleted: %d\n", len(orphans))
	}
	fmt.Println("========================================")

	return nil
}
