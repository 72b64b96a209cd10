package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/attribution-cli/internal/engine"
	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/scheduler"
)

var (
	linkWorkspaces  []string
	linkConcurrency int
	linkLimit       int
	linkOffset      int
	linkRulesPath   string
	linkJSON        bool
)

var linkCmd = &cobra.Command{
	Use:   "link --workspace <id> [--workspace <id>...]",
	Short: "Attribute synced emails to persons, companies and actions",
	Long:  "Runs the attribution engine over every email in the given workspaces: matches participants to known entities, resolves or creates the sales Action for each conversation, creates provisional entities for unseen business contacts, and writes the link rows.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if linkRulesPath != "" {
			cfg.Rules.Path = linkRulesPath
		}
		if linkLimit > 0 {
			cfg.Engine.MaxEmails = linkLimit
		}
		if linkOffset > 0 {
			cfg.Engine.StartOffset = linkOffset
		}
		if err := cfg.Validate("link"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rs, err := initRules()
		if err != nil {
			return err
		}

		eng := engine.New(cfg, st, rs)
		concurrency := linkConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.MaxConcurrentWorkspaces
		}

		results := scheduler.Run(ctx, linkWorkspaces, concurrency, eng.ProcessWorkspace)

		if linkJSON {
			all := make([]*model.BatchStats, 0, len(results))
			for _, r := range results {
				if r.Stats != nil {
					all = append(all, r.Stats)
				}
			}
			out, err := json.MarshalIndent(all, "", "  ")
			if err != nil {
				return eris.Wrap(err, "link: marshal stats")
			}
			cmd.Println(string(out))
		} else {
			for _, r := range results {
				if r.Stats == nil {
					continue
				}
				cmd.Println(engine.FormatBatchReport(r.Stats))
			}
		}

		if failed := scheduler.Failed(results); failed > 0 {
			return eris.Errorf("link: %d of %d workspaces failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	linkCmd.Flags().StringArrayVar(&linkWorkspaces, "workspace", nil, "workspace id to process (repeatable)")
	linkCmd.Flags().IntVar(&linkConcurrency, "concurrency", 0, "max workspaces in flight (default from config)")
	linkCmd.Flags().IntVar(&linkLimit, "limit", 0, "max emails to process per workspace (0 = all)")
	linkCmd.Flags().IntVar(&linkOffset, "offset", 0, "number of emails to skip per workspace")
	linkCmd.Flags().StringVar(&linkRulesPath, "rules", "", "rule table YAML (default from config, else built-in)")
	linkCmd.Flags().BoolVar(&linkJSON, "json", false, "emit batch stats as JSON")
	linkCmd.MarkFlagRequired("workspace") //nolint:errcheck
	rootCmd.AddCommand(linkCmd)
}
