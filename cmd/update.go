package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/reframer/internal/updater"
	"github.com/smazurov/reframer/internal/version"
)

func newSelfUpdateCmd() *cobra.Command {
	var opts updater.Options
	var checkOnly, rollback bool

	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Install the latest reframer release",
		Long: `Replaces this binary with the latest GitHub release for the current platform. ` +
			`The previous binary is kept so --rollback can restore it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := updater.New(opts)
			if err != nil {
				return err
			}
			if !u.Enabled() {
				return fmt.Errorf("self-update disabled: %s", u.DisabledReason())
			}

			switch {
			case rollback:
				if err := u.Rollback(); err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, "Restored the previous binary")
				return nil
			case checkOnly:
				info, err := u.Check(cmd.Context())
				if err != nil {
					return err
				}
				if info.UpdateAvailable {
					fmt.Fprintf(os.Stdout, "Update available: %s -> %s\n%s\n", info.CurrentVersion, info.LatestVersion, info.ReleaseURL)
				} else {
					fmt.Fprintf(os.Stdout, "Up to date (%s)\n", info.CurrentVersion)
				}
				return nil
			}

			info, err := u.Apply(cmd.Context())
			if updater.HasCode(err, updater.ErrCodeNoUpdate) {
				fmt.Fprintf(os.Stdout, "Up to date (%s)\n", version.Version)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Updated %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Repository, "repository", updater.DefaultRepository, "GitHub repository to fetch releases from")
	cmd.Flags().BoolVar(&opts.Prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update is available")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the binary replaced by the last update")
	cmd.MarkFlagsMutuallyExclusive("check", "rollback")
	return cmd
}
