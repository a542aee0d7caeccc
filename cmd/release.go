package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/store"
	"github.com/genomehub/metareg/pkg/store/sql/model"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Create, finalize and inspect releases",
}

var createReleaseCmd = &cobra.Command{
	Use:   "create",
	Short: "Plan a new release",
	RunE: func(cmd *cobra.Command, args []string) error {
		releaseType, err := model.ParseReleaseType(mustFlag(cmd, "type"))
		if err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		version, _ := cmd.Flags().GetFloat64("release-version")
		input := store.NewRelease{
			Version: version,
			Label:   mustFlag(cmd, "label"),
			Type:    releaseType,
			SiteID:  loadConfig().SiteID,
		}

		release, cErr := svc.CreateRelease(context.Background(), input)
		if cErr != nil {
			return cErr
		}

		return printJSON(release)
	},
}

var showReleaseCmd = &cobra.Command{
	Use:   "show <release-id>",
	Short: "Print a release as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		releaseID, err := parseReleaseID(args[0])
		if err != nil {
			return err
		}
		release, cErr := svc.GetRelease(context.Background(), releaseID)
		if cErr != nil {
			return cErr
		}

		return printJSON(release)
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <release-id>",
	Short: "Run the release finalization workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		releaseID, err := parseReleaseID(args[0])
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		yes, _ := cmd.Flags().GetBool("yes")
		excludeGenomes, _ := cmd.Flags().GetStringSlice("exclude-genome")
		excludeDatasets, _ := cmd.Flags().GetStringSlice("exclude-dataset")

		opts := store.FinalizeOptions{
			Force:           force,
			ExcludeGenomes:  excludeGenomes,
			ExcludeDatasets: excludeDatasets,
			Confirm:         confirmWarnings(yes),
		}
		if date := mustFlag(cmd, "release-date"); date != "" {
			parsed, parseErr := time.Parse("2006-01-02", date)
			if parseErr != nil {
				return fmt.Errorf("invalid release date %q: %w", date, parseErr)
			}
			opts.ReleaseDate = &parsed
		}

		release, warnings, cErr := svc.FinalizeRelease(context.Background(), releaseID, opts)
		for _, warning := range warnings {
			log.Warnf("dataset %s: %s", warning.DatasetUUID, warning.Reason)
		}
		if cErr != nil {
			return cErr
		}
		log.Infof("Release %s is now current", release.Label)

		return printJSON(release)
	},
}

var resolveCurrentCmd = &cobra.Command{
	Use:   "resolve-current <release-id>",
	Short: "Recompute current-version flags across the release's genomes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		releaseID, err := parseReleaseID(args[0])
		if err != nil {
			return err
		}
		if cErr := svc.ResolveCurrentSet(context.Background(), releaseID); cErr != nil {
			return cErr
		}

		return nil
	},
}

// confirmWarnings prompts the operator before a forced release goes out with
// unfinished datasets. --yes answers for unattended runs.
func confirmWarnings(yes bool) func([]contract.ValidationError) bool {
	return func(violations []contract.ValidationError) bool {
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "dataset %s: %s\n", violation.DatasetUUID, violation.Reason)
		}
		if yes {
			return true
		}

		fmt.Fprint(os.Stderr, "Release with these warnings? [y/N] ")
		answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return false
		}

		return strings.EqualFold(strings.TrimSpace(answer), "y")
	}
}

func parseReleaseID(arg string) (int64, error) {
	releaseID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("release id must be an integer, got %q", arg)
	}

	return releaseID, nil
}

func init() {
	createReleaseCmd.Flags().Float64("release-version", 0, "monotonically increasing release version")
	createReleaseCmd.Flags().String("label", "", "release label")
	createReleaseCmd.Flags().String("type", "partial", "release type: partial or integrated")
	_ = createReleaseCmd.MarkFlagRequired("release-version")
	_ = createReleaseCmd.MarkFlagRequired("label")

	finalizeCmd.Flags().Bool("force", false, "downgrade blocking failures to warnings")
	finalizeCmd.Flags().Bool("yes", false, "confirm forced warnings without prompting")
	finalizeCmd.Flags().StringSlice("exclude-genome", nil, "genome UUID to leave out of the release")
	finalizeCmd.Flags().StringSlice("exclude-dataset", nil, "dataset UUID to leave out of the release")
	finalizeCmd.Flags().String("release-date", "", "release date (YYYY-MM-DD, default today)")

	releaseCmd.AddCommand(createReleaseCmd, showReleaseCmd, finalizeCmd, resolveCurrentCmd)
	rootCmd.AddCommand(releaseCmd)
}
