package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/picbest/picbest/internal/cluster"
	"github.com/picbest/picbest/internal/config"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group indexed photos into duplicate groups and clusters",
	Long: `Run the grouping pipeline over the indexed collection: detect
near-duplicates by perceptual hash, cluster visually and temporally similar
photos, split clusters by the people in them, and pick the sharpest photo of
every cluster as its representative.

The previous grouping is replaced atomically; if the run fails it stays
untouched.

Examples:
  # Run with configured tunables
  picbest cluster

  # Weigh capture time more heavily
  picbest cluster --time-weight 0.5

  # Force the fixed-epsilon fallback algorithm
  picbest cluster --algorithm dbscan --eps 0.2`,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().String("algorithm", config.AlgorithmHDBSCAN, "Clustering algorithm: hdbscan or dbscan")
	clusterCmd.Flags().Int("dhash-threshold", 12, "Max Hamming distance for near-duplicates")
	clusterCmd.Flags().Float64("time-weight", 0.3, "Weight of capture-time distance (0-1)")
	clusterCmd.Flags().String("time-window", "5m", "Span within which photos count as simultaneous")
	clusterCmd.Flags().String("max-time-window", "24h", "Span beyond which time distance saturates")
	clusterCmd.Flags().Int("min-cluster-size", 2, "Smallest cluster the algorithm may emit")
	clusterCmd.Flags().Int("min-samples", 1, "Density requirement; 1 favors small groups")
	clusterCmd.Flags().Float64("eps", 0.15, "DBSCAN epsilon for the fallback algorithm")
	clusterCmd.Flags().Float64("face-threshold", 0.5, "Face linkage cutoff for person grouping")
}

// applyClusterFlags overrides configured tunables with explicitly set flags.
func applyClusterFlags(cmd *cobra.Command, c *config.ClusteringConfig) error {
	if cmd.Flags().Changed("algorithm") {
		c.Algorithm = mustGetString(cmd, "algorithm")
	}
	if cmd.Flags().Changed("dhash-threshold") {
		c.DHashThreshold = mustGetInt(cmd, "dhash-threshold")
	}
	if cmd.Flags().Changed("time-weight") {
		c.TimeWeight = mustGetFloat64(cmd, "time-weight")
	}
	if cmd.Flags().Changed("time-window") {
		d, err := time.ParseDuration(mustGetString(cmd, "time-window"))
		if err != nil {
			return fmt.Errorf("invalid --time-window: %w", err)
		}
		c.TimeWindow = d
	}
	if cmd.Flags().Changed("max-time-window") {
		d, err := time.ParseDuration(mustGetString(cmd, "max-time-window"))
		if err != nil {
			return fmt.Errorf("invalid --max-time-window: %w", err)
		}
		c.MaxTimeWindow = d
	}
	if cmd.Flags().Changed("min-cluster-size") {
		c.MinClusterSize = mustGetInt(cmd, "min-cluster-size")
	}
	if cmd.Flags().Changed("min-samples") {
		c.MinSamples = mustGetInt(cmd, "min-samples")
	}
	if cmd.Flags().Changed("eps") {
		c.FallbackEps = mustGetFloat64(cmd, "eps")
	}
	if cmd.Flags().Changed("face-threshold") {
		c.FaceDistanceThreshold = mustGetFloat64(cmd, "face-threshold")
	}
	return c.Validate()
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	clustering := cfg.Clustering
	if err := applyClusterFlags(cmd, &clustering); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// One bar step per pipeline phase.
	phases := []string{"loading", "duplicates", "clustering", "refining", "saving"}
	bar := progressbar.NewOptions(len(phases),
		progressbar.OptionSetDescription("Clustering"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	lastPhase := ""

	engine := cluster.New(st, clustering)
	result, err := engine.Run(context.Background(), cluster.RunOptions{
		OnProgress: func(info cluster.ProgressInfo) {
			if info.Phase == lastPhase {
				return
			}
			lastPhase = info.Phase
			bar.Describe(fmt.Sprintf("Clustering (%s)", info.Phase))
			bar.Add(1)
		},
	})
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}
	bar.Finish()

	fmt.Printf("\n\nPhotos: %d\n", result.PhotoCount)
	fmt.Printf("Duplicate groups: %d\n", result.DuplicateGroups)
	fmt.Printf("Clusters: %d (%d unclustered photos kept as singletons)\n", result.ClusterCount, result.NoiseCount)
	fmt.Printf("Persons: %d (from %d faces)\n", result.PersonCount, result.FaceCount)
	if result.UsedFallback {
		fmt.Println("Note: fixed-epsilon fallback algorithm was used")
	}
	return nil
}
