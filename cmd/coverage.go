package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/engine"
	"github.com/sells-group/attribution-cli/internal/model"
)

var (
	coverageWorkspaces []string
	coverageJSON       bool
	coverageXLSX       string
)

var coverageCmd = &cobra.Command{
	Use:   "coverage --workspace <id> [--workspace <id>...]",
	Short: "Report link coverage for workspaces",
	Long:  "Counts, per workspace, how many synced emails carry person, company and action links, straight off the link tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("coverage"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reports := make([]*model.CoverageReport, 0, len(coverageWorkspaces))
		for _, ws := range coverageWorkspaces {
			report, err := st.CoverageCounts(ctx, ws)
			if err != nil {
				return eris.Wrapf(err, "coverage: workspace %s", ws)
			}
			reports = append(reports, report)
		}

		if coverageXLSX != "" {
			if err := engine.ExportCoverageXLSX(coverageXLSX, reports); err != nil {
				return err
			}
			zap.L().Info("coverage exported", zap.String("path", coverageXLSX), zap.Int("workspaces", len(reports)))
		}

		if coverageJSON {
			out, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				return eris.Wrap(err, "coverage: marshal reports")
			}
			cmd.Println(string(out))
			return nil
		}

		for _, r := range reports {
			cmd.Println(engine.FormatCoverageReport(r))
		}
		return nil
	},
}

func init() {
	coverageCmd.Flags().StringArrayVar(&coverageWorkspaces, "workspace", nil, "workspace id to report on (repeatable)")
	coverageCmd.Flags().BoolVar(&coverageJSON, "json", false, "emit reports as JSON")
	coverageCmd.Flags().StringVar(&coverageXLSX, "xlsx", "", "also write reports to an xlsx workbook at this path")
	coverageCmd.MarkFlagRequired("workspace") //nolint:errcheck
	rootCmd.AddCommand(coverageCmd)
}
