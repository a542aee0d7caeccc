package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/genomehub/metareg/pkg/store"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect and drive dataset lifecycles",
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Register a new dataset for a genome",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		input := store.NewDataset{
			GenomeUUID: mustFlag(cmd, "genome"),
			KindName:   mustFlag(cmd, "kind"),
			SourceName: mustFlag(cmd, "source"),
			SourceType: mustFlag(cmd, "source-type"),
			Name:       mustFlag(cmd, "name"),
			Label:      mustFlag(cmd, "label"),
		}
		if version := mustFlag(cmd, "dataset-version"); version != "" {
			input.Version = &version
		}

		datasetUUID, cErr := svc.SubmitDataset(context.Background(), input)
		if cErr != nil {
			return cErr
		}
		fmt.Println(datasetUUID)

		return nil
	},
}

var advanceCmd = &cobra.Command{
	Use:   "advance <dataset-uuid> <target-status>",
	Short: "Advance a dataset to the given status, propagating up the kind hierarchy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		status, cErr := svc.Advance(context.Background(), args[0], args[1], force)
		if cErr != nil {
			return cErr
		}
		fmt.Println(status)

		return nil
	},
}

var markFaultyCmd = &cobra.Command{
	Use:   "mark-faulty <dataset-uuid>",
	Short: "Flag a dataset as faulty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		if cErr := svc.MarkFaulty(context.Background(), args[0]); cErr != nil {
			return cErr
		}

		return nil
	},
}

var childrenCmd = &cobra.Command{
	Use:   "children <dataset-uuid>",
	Short: "Create the child datasets a dataset's kind prescribes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		created, cErr := svc.CreateChildDatasets(context.Background(), args[0])
		if cErr != nil {
			return cErr
		}
		for _, datasetUUID := range created {
			fmt.Println(datasetUUID)
		}

		return nil
	},
}

var showDatasetCmd = &cobra.Command{
	Use:   "show <dataset-uuid>",
	Short: "Print a dataset as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		dataset, cErr := svc.GetDataset(context.Background(), args[0])
		if cErr != nil {
			return cErr
		}

		return printJSON(dataset)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile-faulty",
	Short: "Cascade faulty status through dataset hierarchies and detach pending links",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		if cErr := svc.ReconcileFaulty(context.Background()); cErr != nil {
			return cErr
		}

		return nil
	},
}

var genomesCmd = &cobra.Command{
	Use:   "genomes",
	Short: "List genomes whose dataset of a kind has a given status",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		rows, cErr := svc.GenomesByStatusAndKind(
			context.Background(),
			mustFlag(cmd, "status"),
			mustFlag(cmd, "kind"),
		)
		if cErr != nil {
			return cErr
		}

		return printJSON(rows)
	},
}

func mustFlag(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}

func printJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(value)
}

func init() {
	submitCmd.Flags().String("genome", "", "genome UUID the dataset belongs to")
	submitCmd.Flags().String("kind", "", "dataset kind, e.g. genebuild")
	submitCmd.Flags().String("source", "", "name of the producing source database")
	submitCmd.Flags().String("source-type", "core", "type of the producing source")
	submitCmd.Flags().String("name", "", "dataset name")
	submitCmd.Flags().String("label", "", "human readable label")
	submitCmd.Flags().String("dataset-version", "", "dataset version")
	_ = submitCmd.MarkFlagRequired("genome")
	_ = submitCmd.MarkFlagRequired("kind")
	_ = submitCmd.MarkFlagRequired("source")
	_ = submitCmd.MarkFlagRequired("name")
	_ = submitCmd.MarkFlagRequired("label")

	advanceCmd.Flags().Bool("force", false, "skip prerequisite and child checks")

	genomesCmd.Flags().String("status", "", "dataset status to filter on")
	genomesCmd.Flags().String("kind", "", "dataset kind to filter on")
	_ = genomesCmd.MarkFlagRequired("status")
	_ = genomesCmd.MarkFlagRequired("kind")

	datasetCmd.AddCommand(submitCmd, advanceCmd, markFaultyCmd, childrenCmd, showDatasetCmd, genomesCmd)
	rootCmd.AddCommand(datasetCmd, reconcileCmd)
}
