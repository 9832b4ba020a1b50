package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Heavybullets8/TT-Migration/internal/doctor"
	"github.com/Heavybullets8/TT-Migration/pkg/color"
)

func newDoctorCmd(a *app) *cobra.Command {
	var (
		dir    string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check a log directory for problems",
		Long: `Check a log directory for problems.

Reports an unusable directory, a corrupt log, a broken hash chain, files whose
latest entry is flagged, orphan temp files and preserved corrupt logs. With
--strict every marker file in the directory is verified too. Exits 1 when
the directory is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := doctor.NewDoctor(dir, a.cfg.Log.FileName).Check(strict)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if err := outputJSON(out, result); err != nil {
					return err
				}
			} else {
				for _, f := range result.Findings {
					sev := f.Severity
					switch sev {
					case "critical", "error":
						sev = color.Error(sev)
					case "warning":
						sev = color.Warning(sev)
					}
					fmt.Fprintf(out, "[%s] %s: %s", sev, f.Category, f.Description)
					if f.Path != "" {
						fmt.Fprintf(out, " (%s)", f.Path)
					}
					fmt.Fprintln(out)
				}
				if result.Healthy {
					fmt.Fprintln(out, color.Success("Healthy."))
				} else {
					fmt.Fprintln(out, color.Error("Unhealthy."))
				}
			}
			if !result.Healthy {
				return errTamperDetected
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to check")
	cmd.Flags().BoolVar(&strict, "strict", false, "also verify every marker file")
	return cmd
}
