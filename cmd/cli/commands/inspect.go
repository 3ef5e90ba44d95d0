package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inferloop/mia/internal/datasets"
)

type InspectOptions struct {
	DataPath    string
	DatasetName string
	RecordID    int
}

func NewInspectCmd(globals *GlobalOptions) *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the data description and size of a dataset",
		Example: `  mia inspect --data data/adult
  mia inspect --dataset adult --record 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, globals, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.DataPath, "data", "d", "", "Local dataset path prefix (<path>.json and <path>.csv)")
	cmd.Flags().StringVar(&opts.DatasetName, "dataset", "", "Dataset name in the configured storage")
	cmd.Flags().IntVarP(&opts.RecordID, "record", "r", -1, "Also show the record at this position")

	return cmd
}

func runInspect(cmd *cobra.Command, globals *GlobalOptions, opts *InspectOptions) error {
	rt, err := loadRuntime(globals)
	if err != nil {
		return err
	}

	ds, err := rt.loadDataset(cmd.Context(), opts.DataPath, opts.DatasetName, 0)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Records: %d\nColumns: %d\n\n", ds.Len(), ds.Description().NumColumns())
	if err := printColumns(out, ds); err != nil {
		return err
	}

	if opts.RecordID < 0 {
		return nil
	}

	selected, err := ds.GetRecords([]int{opts.RecordID})
	if err != nil {
		return err
	}
	record, err := datasets.RecordFromDataset(selected)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", record)

	// Report whether the record's values occur more than once.
	if _, err := record.GetID(ds); err != nil {
		fmt.Fprintf(out, "Lookup: %v\n", err)
	}
	return nil
}

func printColumns(w io.Writer, ds *datasets.Tabular) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tKIND\tCATEGORIES")
	for _, col := range ds.Description().Columns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", col.Name, col.Type, col.Kind(), len(col.Representation.Categories))
	}
	return tw.Flush()
}
