package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/picbest/picbest/internal/config"
	"github.com/picbest/picbest/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export [target-dir]",
	Short: "Copy starred photos to an export directory",
	Long: `Copy all starred photos into a flat export directory, the keepers
selected during curation. Photos whose file has gone missing since indexing
are reported and skipped.

Examples:
  # Export to the configured directory (EXPORT_DIR)
  picbest export

  # Export to a specific directory
  picbest export ~/keepers`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	targetDir := cfg.Library.ExportDir
	if len(args) == 1 {
		targetDir = args[0]
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	photos, err := st.ListStarredPhotos(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list starred photos: %w", err)
	}
	if len(photos) == 0 {
		fmt.Println("No starred photos to export.")
		return nil
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Exporting photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var copied int
	var errs []error
	seen := make(map[string]bool)
	for _, p := range photos {
		name := exportName(seen, p)
		if err := copyFile(p.FilePath, filepath.Join(targetDir, name)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.FilePath, err))
		} else {
			copied++
		}
		bar.Add(1)
	}

	fmt.Printf("\n\nExported %d photos to %s\n", copied, targetDir)
	if len(errs) > 0 {
		fmt.Printf("Errors: %d\n", len(errs))
		for _, err := range errs {
			fmt.Printf("  - %v\n", err)
		}
	}
	return nil
}

// exportName flattens the collection into one directory; duplicate basenames
// get a photo-id prefix.
func exportName(seen map[string]bool, p store.Photo) string {
	name := filepath.Base(p.FilePath)
	if seen[name] {
		name = fmt.Sprintf("%d_%s", p.ID, name)
	}
	seen[name] = true
	return name
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
