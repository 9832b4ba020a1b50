package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Heavybullets8/TT-Migration/pkg/color"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
	"github.com/Heavybullets8/TT-Migration/pkg/template"
)

func newMarkerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marker <command>",
		Short: "Create and verify integrity markers",
	}
	cmd.AddCommand(newMarkerCreateCmd(a), newMarkerVerifyCmd(a))
	return cmd
}

func newMarkerCreateCmd(a *app) *cobra.Command {
	var (
		actor string
		dir   string
		mctx  model.MarkerContext
		extra []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a new marker file",
		Long: `Write a new marker file committing to the operation metadata.

The marker body holds a SHA-256 commitment, the canonical JSON payload and a
random entropy token. Its file name is derived from the body digest, and an
existing file is never overwritten.

The label may contain placeholders: {date}, {time}, {datetime}, {unix},
{user}, {hostname}, {arch}.

Examples:
  ttm marker create --actor alice --path /mnt/tank/backups/app --dir /mnt/tank/backups/app
  ttm marker create --actor alice --path ix-app --migrate-pvs --extra chart=nextcloud --dir .
  ttm marker create --actor alice --label "pre-migrate-{date}" --dir .`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if mctx.Flags.Extra, err = parseKeyValues("extra", extra); err != nil {
				return err
			}
			mctx.Label = template.Expand(mctx.Label, a.client.Now(), nil)

			path, rec, err := a.client.CreateMarker(cmd.Context(), actor, mctx, dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return outputJSON(out, map[string]any{"path": path, "marker": rec})
			}
			fmt.Fprintf(out, "Created marker %s\n", color.Success(path))
			fmt.Fprintf(out, "  Commitment: %s\n", color.Digest(string(rec.Commitment)))
			fmt.Fprintf(out, "  Actor:      %s\n", rec.Actor)
			fmt.Fprintf(out, "  Label:      %s\n", rec.Context.Label)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&actor, "actor", "", "principal initiating the operation")
	f.StringVar(&mctx.Path, "path", "", "target namespace or path of the operation")
	f.StringVar(&mctx.Label, "label", "", "free-form label (defaults to marker.default_label)")
	f.BoolVar(&mctx.Flags.Force, "force", false, "operation was forced")
	f.BoolVar(&mctx.Flags.Outdated, "outdated", false, "operation targets an outdated release")
	f.BoolVar(&mctx.Flags.Deploying, "deploying", false, "application was deploying")
	f.BoolVar(&mctx.Flags.MigrateDB, "migrate-db", false, "database is migrated")
	f.BoolVar(&mctx.Flags.MigratePVs, "migrate-pvs", false, "persistent volumes are migrated")
	f.StringArrayVar(&extra, "extra", nil, "additional flag as name=value (repeatable)")
	f.StringVar(&dir, "dir", ".", "directory to write the marker into")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newMarkerVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <marker-file>",
		Short: "Check a marker's commitment and file name",
		Long: `Check a marker file.

Recomputes the commitment over the stored payload and token, and the file name
digest over the body. Exits 1 when either does not match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.VerifyMarker(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if err := outputJSON(out, result); err != nil {
					return err
				}
			} else {
				status := model.StatusNotTampered
				if result.TamperDetected {
					status = model.StatusTampered
				}
				fmt.Fprintf(out, "Marker: %s  %s\n", result.Path, color.Status(status))
				fmt.Fprintf(out, "  Commitment: %v\n", result.CommitmentValid)
				fmt.Fprintf(out, "  File name:  %v\n", result.NameValid)
				if result.Record != nil {
					fmt.Fprintf(out, "  Actor:      %s\n", result.Record.Actor)
					fmt.Fprintf(out, "  Created:    %s\n", result.Record.Timestamp.Format("2006-01-02 15:04:05 MST"))
				}
				if result.Error != "" {
					fmt.Fprintf(out, "  %s %s\n", color.Error("TAMPER DETECTED:"), result.Error)
				}
			}
			if result.TamperDetected {
				return errTamperDetected
			}
			return nil
		},
	}
}
