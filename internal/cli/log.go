package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Heavybullets8/TT-Migration/internal/verify"
	"github.com/Heavybullets8/TT-Migration/pkg/color"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
	"github.com/Heavybullets8/TT-Migration/pkg/template"
)

func newLogCmd(a *app) *cobra.Command {
	var logDir string
	cmd := &cobra.Command{
		Use:   "log <command>",
		Short: "Record and verify watched files in the integrity log",
		Long: `Record and verify watched files in the integrity log.

The log is an indented JSON array stored as .variables.log (log.file_name) in
the log directory. Every entry carries the content hash of the watched file
and a hash link to the previous entry.`,
	}
	cmd.PersistentFlags().StringVar(&logDir, "log-dir", ".", "directory holding the integrity log")

	cmd.AddCommand(
		newLogRecordCmd(a, &logDir),
		newLogVerifyCmd(a, &logDir),
		newLogShowCmd(a, &logDir),
		newLogCheckChainCmd(a, &logDir),
	)
	return cmd
}

func newLogRecordCmd(a *app, logDir *string) *cobra.Command {
	var vars []string
	cmd := &cobra.Command{
		Use:   "record <watched-file>",
		Short: "Append the current hash of a watched file",
		Long: `Append the current content hash of a watched file to the log.

The entry is marked tampered when the hash differs from the previous entry
for the same file. An unreadable file is recorded with the hash "unreadable".
Metadata values may contain the same placeholders as marker labels.

Examples:
  ttm log record /mnt/tank/backups/app/db.sql --log-dir /mnt/tank/backups/app
  ttm log record values.yaml --var variable_name=backup_hash --var value=abc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parseKeyValues("var", vars)
			if err != nil {
				return err
			}
			meta = template.ExpandAll(meta, a.client.Now())
			entry, err := a.client.Record(cmd.Context(), args[0], *logDir, meta)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return outputJSON(out, entry)
			}
			fmt.Fprintf(out, "Recorded %s  %s\n", entry.WatchedPath, color.Status(entry.Status))
			fmt.Fprintf(out, "  Hash:  %s\n", color.Digest(string(entry.ContentHash)))
			fmt.Fprintf(out, "  Entry: %s\n", color.Dim(entry.ID))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "metadata as name=value (repeatable)")
	return cmd
}

func newLogVerifyCmd(a *app, logDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <watched-file>",
		Short: "Compare a watched file with its last recorded hash",
		Long: `Compare a watched file with its last recorded hash.

On divergence the last entry is flipped to tampered; the log is never
appended to. Exits 1 when the file is tampered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tampered, err := a.client.Verify(cmd.Context(), args[0], *logDir)
			if err != nil {
				return err
			}

			status := model.StatusNotTampered
			if tampered {
				status = model.StatusTampered
			}
			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if err := outputJSON(out, map[string]any{"path": args[0], "tampered": tampered, "status": status}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%s  %s\n", args[0], color.Status(status))
			}
			if tampered {
				return errTamperDetected
			}
			return nil
		},
	}
}

func newLogShowCmd(a *app, logDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the log entries in append order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.client.Entries(cmd.Context(), *logDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if entries == nil {
					entries = []model.LogEntry{}
				}
				return outputJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entries.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, color.Header("TIMESTAMP\tSTATUS\tHASH\tPATH"))
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					color.Status(e.Status),
					e.ContentHash.Short(),
					e.WatchedPath)
			}
			return tw.Flush()
		},
	}
}

func newLogCheckChainCmd(a *app, logDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-chain",
		Short: "Verify the hash links between log entries",
		Long: `Verify the hash links between log entries.

Detects entries that were edited, removed or reordered in the log file itself.
Exits 1 when the chain is broken.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.client.CheckChain(cmd.Context(), *logDir)
			var ce *verify.ChainError
			if err != nil && !errors.As(err, &ce) {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				res := map[string]any{"valid": ce == nil}
				if ce != nil {
					res["index"] = ce.Index
					res["reason"] = ce.Reason
				}
				if err := outputJSON(out, res); err != nil {
					return err
				}
			} else if ce != nil {
				fmt.Fprintf(out, "%s entry %d: %s\n", color.Error("CHAIN BROKEN:"), ce.Index, ce.Reason)
			} else {
				fmt.Fprintln(out, color.Success("Chain intact."))
			}
			if ce != nil {
				return errTamperDetected
			}
			return nil
		},
	}
}
