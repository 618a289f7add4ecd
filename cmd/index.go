package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/picbest/picbest/internal/config"
	"github.com/picbest/picbest/internal/embed"
	"github.com/picbest/picbest/internal/fingerprint"
	"github.com/picbest/picbest/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index [photos-dir]",
	Short: "Index a photo directory",
	Long: `Index a photo directory: compute fingerprints (content hash, dHash,
sharpness, dimensions), image embeddings, and face descriptors for every
supported image, and store them for clustering.

The process can be stopped and resumed - unchanged photos that already have
an embedding are skipped.

Examples:
  # Index the configured photos directory (PHOTOS_DIR)
  picbest index

  # Index a specific directory with 3 workers
  picbest index ~/Pictures/2024 --concurrency 3

  # Recompute everything, including unchanged photos
  picbest index --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Int("concurrency", 5, "Number of parallel workers")
	indexCmd.Flags().Int("limit", 0, "Limit number of photos to process (0 = no limit)")
	indexCmd.Flags().Bool("force", false, "Reprocess photos even when unchanged")
	indexCmd.Flags().Bool("skip-faces", false, "Skip face detection")
}

// imageExtensions lists the file extensions the indexer picks up.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	photosDir := cfg.Library.PhotosDir
	if len(args) == 1 {
		photosDir = args[0]
	}
	concurrency := mustGetInt(cmd, "concurrency")
	limit := mustGetInt(cmd, "limit")
	force := mustGetBool(cmd, "force")
	skipFaces := mustGetBool(cmd, "skip-faces")

	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	embClient := embed.NewClient(cfg.Embedding.URL)

	fmt.Printf("Scanning %s...\n", photosDir)
	files, err := collectImageFiles(photosDir, limit)
	if err != nil {
		return fmt.Errorf("failed to scan photos directory: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No photos found.")
		return nil
	}
	fmt.Printf("Found %d photos\n\n", len(files))

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Indexing photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var mu sync.Mutex
	var indexed, skipped int
	var errs []error

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			wasSkipped, err := indexPhoto(ctx, st, embClient, photosDir, path, force, skipFaces)

			mu.Lock()
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			case wasSkipped:
				skipped++
			default:
				indexed++
			}
			mu.Unlock()
			bar.Add(1)
		}(path)
	}
	wg.Wait()

	fmt.Printf("\n\nIndexed: %d photos\n", indexed)
	fmt.Printf("Skipped: %d unchanged\n", skipped)
	if len(errs) > 0 {
		fmt.Printf("Errors: %d\n", len(errs))
		for _, err := range errs {
			fmt.Printf("  - %v\n", err)
		}
	}
	return nil
}

// collectImageFiles walks dir and returns supported image paths in sorted
// order so runs are deterministic.
func collectImageFiles(dir string, limit int) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// indexPhoto fingerprints one file and stores its embedding and faces.
// Returns true when the photo was already indexed and unchanged.
func indexPhoto(ctx context.Context, st store.Store, embClient *embed.Client, photosDir, path string, force, skipFaces bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}

	fileHash, err := fingerprint.ContentHash(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("failed to hash file: %w", err)
	}

	// Resume support: an unchanged photo that already has an embedding is done.
	if !force {
		existing, err := st.GetPhotoByPath(ctx, path)
		if err != nil {
			return false, err
		}
		if existing != nil && existing.FileHash == fileHash {
			emb, err := st.GetEmbedding(ctx, existing.ID)
			if err != nil {
				return false, err
			}
			if emb != nil {
				return true, nil
			}
		}
	}

	fp, err := fingerprint.Compute(data)
	if err != nil {
		return false, fmt.Errorf("failed to fingerprint: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	folder, err := filepath.Rel(photosDir, filepath.Dir(path))
	if err != nil {
		folder = filepath.Dir(path)
	}

	// File mtime stands in for the capture time; cameras preserve it on copy
	// and it keeps burst ordering intact even without EXIF.
	takenAt := info.ModTime()
	sharpness := fp.Sharpness

	photo := &store.Photo{
		FilePath:  path,
		FileName:  filepath.Base(path),
		Folder:    folder,
		FileHash:  fileHash,
		DHash:     fp.DHash,
		TakenAt:   &takenAt,
		Width:     fp.Width,
		Height:    fp.Height,
		FileSize:  info.Size(),
		Sharpness: &sharpness,
	}
	if err := st.UpsertPhoto(ctx, photo); err != nil {
		return false, fmt.Errorf("failed to save photo: %w", err)
	}

	emb, err := embClient.ComputeImageEmbedding(ctx, data)
	if err != nil {
		return false, fmt.Errorf("failed to compute embedding: %w", err)
	}
	if err := st.SaveEmbedding(ctx, store.StoredEmbedding{
		PhotoID:   photo.ID,
		Embedding: emb.Embedding,
		Model:     emb.Model,
		Dim:       emb.Dim,
	}); err != nil {
		return false, fmt.Errorf("failed to save embedding: %w", err)
	}

	if skipFaces {
		return false, nil
	}

	faceResp, err := embClient.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return false, fmt.Errorf("failed to detect faces: %w", err)
	}
	faces := make([]store.StoredFace, len(faceResp.Faces))
	for i, f := range faceResp.Faces {
		faces[i] = store.StoredFace{
			FaceIndex: f.FaceIndex,
			Embedding: f.Embedding,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
		}
	}
	if err := st.SaveFaces(ctx, photo.ID, faces); err != nil {
		return false, fmt.Errorf("failed to save faces: %w", err)
	}
	return false, nil
}
