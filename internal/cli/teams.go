package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smhanov/scholar"
)

func (a *app) teamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "Print the configured teams as YAML",
		Long:  "Print the configured teams in the format read from teams_file. The output is a starting point for a custom teams file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			teams := scholar.DefaultTeams()
			if cfg.TeamsFile != "" {
				if teams, err = scholar.LoadTeamsFile(cfg.TeamsFile); err != nil {
					return err
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(struct {
				Teams []scholar.TeamConfig `yaml:"teams"`
			}{teams}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
