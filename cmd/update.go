package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/smazurov/viewfinder/internal/logging"
	"github.com/smazurov/viewfinder/internal/systemd"
	"github.com/smazurov/viewfinder/internal/updater"
)

// updateRepository is the release source for self-update.
const updateRepository = "smazurov/viewfinder"

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var checkOnly bool
	var rollback bool
	var prerelease bool
	var restartUnit string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the binary to the latest release",
		Long: `Checks GitHub releases for ` + updateRepository + ` and replaces the
running binary in place. The previous binary is kept for --rollback.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			u, err := updater.New(updater.Options{
				Repository: updateRepository,
				Prerelease: prerelease,
			})
			if err != nil {
				return err
			}

			if rollback {
				ver, err := u.Rollback()
				if err != nil {
					return err
				}
				fmt.Printf("rolled back to %s\n", ver)
				return restartService(cmd, restartUnit)
			}

			if checkOnly {
				info, err := u.Check(cmd.Context())
				if err != nil {
					return err
				}
				printCheck(info)
				return nil
			}

			info, err := u.Apply(cmd.Context())
			if err != nil {
				return err
			}
			if !info.UpdateAvailable {
				fmt.Printf("%s is up to date\n", info.CurrentVersion)
				return nil
			}
			fmt.Printf("updated %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			return restartService(cmd, restartUnit)
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check whether an update exists")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the previously installed binary")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Consider prereleases")
	cmd.Flags().StringVar(&restartUnit, "restart", "", "Restart this systemd unit after the binary is swapped")
	cmd.MarkFlagsMutuallyExclusive("check", "rollback")
	cmd.MarkFlagsMutuallyExclusive("check", "restart")
	return cmd
}

// restartService restarts unit so it picks up the swapped binary. The
// update itself already succeeded, so a restart failure is an error of
// its own, not a reason to roll back.
func restartService(cmd *cobra.Command, unit string) error {
	if unit == "" {
		return nil
	}
	ctx := cmd.Context()
	mgr, err := systemd.NewManager(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer mgr.Close()

	if err := mgr.Restart(ctx, unit); err != nil {
		return fmt.Errorf("restart %s: %w", unit, err)
	}
	if state, err := mgr.Status(ctx, unit); err == nil {
		fmt.Printf("restarted %s (%s)\n", unit, state)
	} else {
		fmt.Printf("restarted %s\n", unit)
	}
	return nil
}

func printCheck(info *updater.UpdateInfo) {
	if !info.UpdateAvailable {
		fmt.Printf("%s is up to date (latest: %s)\n", info.CurrentVersion, info.LatestVersion)
		return
	}
	fmt.Printf("update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
	fmt.Printf("  published: %s\n", info.PublishedAt.Format("2006-01-02"))
	if info.AssetSize > 0 {
		fmt.Printf("  download:  %s\n", humanize.Bytes(uint64(info.AssetSize)))
	}
	if info.ReleaseURL != "" {
		fmt.Printf("  release:   %s\n", info.ReleaseURL)
	}
}
