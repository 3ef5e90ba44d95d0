package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inferloop/mia/internal/datasets"
)

func NewDatasetsCmd(globals *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Manage datasets in the configured storage backend",
	}

	cmd.AddCommand(newDatasetsListCmd(globals))
	cmd.AddCommand(newDatasetsImportCmd(globals))
	cmd.AddCommand(newDatasetsExportCmd(globals))
	cmd.AddCommand(newDatasetsDeleteCmd(globals))

	return cmd
}

func newDatasetsListCmd(globals *GlobalOptions) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(globals)
			if err != nil {
				return err
			}
			store, closeStore, err := rt.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			names, err := store.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tBACKEND")
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%s\n", name, store.Backend().Type())
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Only list names with this prefix")

	return cmd
}

func newDatasetsImportCmd(globals *GlobalOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import a local <path>.json/<path>.csv pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(globals)
			if err != nil {
				return err
			}
			ds, err := datasets.Load(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}

			store, closeStore, err := rt.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Save(cmd.Context(), name, ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d records)\n", name, ds.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Stored name (defaults to the base name of path)")

	return cmd
}

func newDatasetsExportCmd(globals *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <name> <path>",
		Short: "Export a stored dataset to <path>.json/<path>.csv",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(globals)
			if err != nil {
				return err
			}
			store, closeStore, err := rt.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			ds, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := datasets.Save(ds, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", args[0], args[1])
			return nil
		},
	}

	return cmd
}

func newDatasetsDeleteCmd(globals *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(globals)
			if err != nil {
				return err
			}
			store, closeStore, err := rt.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	return cmd
}
