package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var rulesPath string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the classification ruleset",
	Long:  "Shows and validates the keyword tables that drive action type, direction and stage classification.",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective ruleset as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rulesPath != "" {
			cfg.Rules.Path = rulesPath
		}
		if err := cfg.Validate("rules"); err != nil {
			return err
		}

		rs, err := initRules()
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(rs)
		if err != nil {
			return eris.Wrap(err, "rules: marshal ruleset")
		}
		cmd.Print(string(out))
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configured ruleset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rulesPath != "" {
			cfg.Rules.Path = rulesPath
		}
		if err := cfg.Validate("rules"); err != nil {
			return err
		}

		rs, err := initRules()
		if err != nil {
			return err
		}

		if err := rs.Validate(); err != nil {
			return err
		}

		zap.L().Info("ruleset is valid",
			zap.Int("categories", len(rs.Categories)),
			zap.Int("stages", len(rs.Stages)),
			zap.Int("seller_domains", len(rs.SellerDomains)))
		cmd.Println("ruleset is valid")
		return nil
	},
}

func init() {
	rulesCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "rule table YAML (default from config, else built-in)")
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}
