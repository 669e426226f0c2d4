package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/importer"
	"github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "foodgramctl",
	Short:         "maintenance jobs for a foodgram database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var loadIngredientsCmd = &cobra.Command{
	Use:   "load-ingredients <file>",
	Short: "replace the ingredient catalog with a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImporter(cmd, func(im *importer.Importer) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := im.LoadIngredients(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingredients: %s\n", report)
			return nil
		})
	},
}

var loadUsersCmd = &cobra.Command{
	Use:   "load-users <file>",
	Short: "create accounts from a JSON file, skipping taken usernames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImporter(cmd, func(im *importer.Importer) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := im.LoadUsers(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: %s\n", report)
			return nil
		})
	},
}

var dataDir string

var loadRecipesCmd = &cobra.Command{
	Use:   "load-recipes <file>",
	Short: "replace every recipe with the ones in a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImporter(cmd, func(im *importer.Importer) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			dir := dataDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			report, err := im.LoadRecipes(cmd.Context(), f, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recipes: %s\n", report)
			return nil
		})
	},
}

var facesDir string

var setDefaultAvatarsCmd = &cobra.Command{
	Use:   "set-default-avatars",
	Short: "give every user one of the stock face images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImporter(cmd, func(im *importer.Importer) error {
			report, err := im.SetDefaultAvatars(cmd.Context(), facesDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "avatars: %d updated, %d missing, %d users\n",
				report.Updated, report.Missing, report.Users)
			return nil
		})
	},
}

var cleanupImagesCmd = &cobra.Command{
	Use:   "cleanup-images",
	Short: "delete stored images no user or recipe refers to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImporter(cmd, func(im *importer.Importer) error {
			result, err := im.CleanupImages(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "images: %d deleted, %d failed, %d scanned\n",
				result.Deleted, result.Failed, result.Scanned)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	loadRecipesCmd.Flags().StringVar(&dataDir, "data-dir", "", "directory image paths are relative to (default: the file's directory)")
	setDefaultAvatarsCmd.Flags().StringVar(&facesDir, "faces-dir", filepath.Join("data", "images", "test-images"), "directory holding face1..face6 images")

	rootCmd.AddCommand(
		loadIngredientsCmd,
		loadUsersCmd,
		loadRecipesCmd,
		setDefaultAvatarsCmd,
		cleanupImagesCmd,
	)
}

// withImporter opens the configured database and media store for the
// duration of fn.
func withImporter(cmd *cobra.Command, fn func(im *importer.Importer) error) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	store, err := server.OpenStore(ctx, cfg.Media)
	if err != nil {
		return fmt.Errorf("opening media store: %w", err)
	}

	im := importer.New(db, db, db, store, auth.NewPasswordService(), logger)
	return fn(im)
}
