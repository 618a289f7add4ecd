package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/picbest/picbest/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Long: `Show the state of the indexed collection: photo, embedding, face,
cluster, and person counts, curation progress, and the cluster size
distribution.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	photoCount, err := st.CountPhotos(ctx)
	if err != nil {
		return fmt.Errorf("failed to count photos: %w", err)
	}
	embeddingCount, err := st.CountEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to count embeddings: %w", err)
	}
	faceCount, err := st.CountFaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to count faces: %w", err)
	}

	photos, err := st.ListPhotos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}
	var starred, rejected, rated int
	dupGroups := make(map[int64]bool)
	for _, p := range photos {
		if p.IsStarred {
			starred++
		}
		if p.IsRejected {
			rejected++
		}
		if p.Rating > 0 {
			rated++
		}
		if p.DuplicateGroupID != nil {
			dupGroups[*p.DuplicateGroupID] = true
		}
	}

	clusters, err := st.ListClusters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}
	persons, err := st.ListPersons(ctx)
	if err != nil {
		return fmt.Errorf("failed to list persons: %w", err)
	}

	fmt.Printf("Photos:     %d (%d with embeddings)\n", photoCount, embeddingCount)
	fmt.Printf("Faces:      %d\n", faceCount)
	fmt.Printf("Duplicates: %d groups\n", len(dupGroups))
	fmt.Printf("Clusters:   %d\n", len(clusters))
	fmt.Printf("Persons:    %d\n", len(persons))
	fmt.Printf("Curation:   %d starred, %d rejected, %d rated\n", starred, rejected, rated)

	if len(clusters) > 0 {
		// Size distribution: how many clusters have 1, 2, ... photos.
		bySize := make(map[int]int)
		for _, c := range clusters {
			bySize[c.PhotoCount]++
		}
		sizes := make([]int, 0, len(bySize))
		for size := range bySize {
			sizes = append(sizes, size)
		}
		sort.Ints(sizes)

		fmt.Println("\nCluster sizes:")
		for _, size := range sizes {
			fmt.Printf("  %4d photos: %d clusters\n", size, bySize[size])
		}
	}
	return nil
}
