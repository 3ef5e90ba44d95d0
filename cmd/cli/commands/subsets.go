package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/mia/internal/datasets"
)

type SubsetsOptions struct {
	DataPath    string
	DatasetName string
	Count       int
	Size        int
	Seed        uint64
	OutputDir   string
	Prefix      string
}

func NewSubsetsCmd(globals *GlobalOptions) *cobra.Command {
	opts := &SubsetsOptions{}

	cmd := &cobra.Command{
		Use:   "subsets",
		Short: "Draw equally sized random subsets of a dataset",
		Long: `Draw subsets of distinct records, independently of each other, and write each one as a
<prefix>-<i>.json / <prefix>-<i>.csv pair in the output directory.`,
		Example: `  mia subsets --data data/adult --count 4 --size 100 --output-dir shards`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubsets(cmd, globals, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.DataPath, "data", "d", "", "Local dataset path prefix (<path>.json and <path>.csv)")
	cmd.Flags().StringVar(&opts.DatasetName, "dataset", "", "Dataset name in the configured storage")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 2, "Number of subsets")
	cmd.Flags().IntVarP(&opts.Size, "size", "s", 0, "Records per subset")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed (0 for a random seed)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", ".", "Directory for the subsets")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "subset", "File name prefix")

	cmd.MarkFlagRequired("size")

	return cmd
}

func runSubsets(cmd *cobra.Command, globals *GlobalOptions, opts *SubsetsOptions) error {
	rt, err := loadRuntime(globals)
	if err != nil {
		return err
	}

	ds, err := rt.loadDataset(cmd.Context(), opts.DataPath, opts.DatasetName, opts.Seed)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	subsets, err := ds.CreateSubsets(opts.Count, opts.Size, opts.Seed)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for i, subset := range subsets {
		tabular, ok := subset.(*datasets.Tabular)
		if !ok {
			return fmt.Errorf("unexpected subset type %T", subset)
		}
		path := filepath.Join(opts.OutputDir, fmt.Sprintf("%s-%d", opts.Prefix, i))
		if err := datasets.Save(tabular, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d records)\n", path, tabular.Len())
	}

	rt.logger.WithFields(logrus.Fields{
		"count": len(subsets),
		"size":  opts.Size,
	}).Debug("Wrote subsets")

	return nil
}
