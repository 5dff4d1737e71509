package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smhanov/scholar"
	"github.com/smhanov/scholar/internal/workbench"
)

func (a *app) runCommand() *cobra.Command {
	var (
		task    string
		req     scholar.Request
		session workbench.Session
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one task and print the answer",
		Example: `  scholar run --task research --topic "federated learning"
  scholar run --task literature --topic "graph neural networks" --count 3
  scholar run --task keyinsights --url https://arxiv.org/abs/1706.03762`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			log, err := a.newLogger(cfg, "stderr")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			opts := append([]workbench.Option{workbench.WithLogger(log)}, a.workbenchOpts...)
			wb, err := workbench.New(cfg, opts...)
			if err != nil {
				return err
			}
			req.Task, _ = scholar.ParseTask(task)

			resp, err := wb.Run(cmd.Context(), session, req)
			if errors.Is(err, workbench.ErrMissingCredential) {
				return errors.New(workbench.MsgMissingCredential)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			_, err = fmt.Fprintln(out, resp.Content)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&task, "task", string(scholar.TaskResearch), "task to run: research, literature or keyinsights")
	f.StringVar(&req.Prompt, "topic", "", "research topic")
	f.StringVar(&req.URL, "url", "", "paper URL for keyinsights")
	f.IntVar(&req.Count, "count", scholar.DefaultPaperCount, "number of papers for literature (1-10)")
	f.StringVar(&session.APIKey, "api-key", "", "model API key (defaults to llm.api_key or OPENAI_API_KEY)")
	f.StringVar(&session.Model, "model", "", "model name, overrides the configured model")
	f.BoolVar(&asJSON, "json", false, "print the response as JSON")
	return cmd
}
