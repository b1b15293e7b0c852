package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/output"
)

const defaultListLimit = 10

func newListCmd() *cobra.Command {
	var (
		project string
		status  string
		query   string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent Jira tickets",
		Long: `List recent tickets, optionally filtered by project and status, or by a raw
JQL query.

Examples:
  jtriage list --project PROJ
  jtriage list --project PROJ --status "In Progress" --limit 20
  jtriage list --query 'labels = crash ORDER BY updated DESC'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newJiraClient(currentConfig())
			if err != nil {
				return err
			}

			jql := strings.TrimSpace(query)
			if jql == "" {
				jql = jira.BuildJQL(project, status)
			}
			refs, err := client.Search(cmd.Context(), jql, limit)
			if err != nil {
				return err
			}

			if IsJSONOutput() {
				return output.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{
					"success": true,
					"jql":     jql,
					"issues":  refs,
				})
			}

			f := GetFormatter(cmd.OutOrStdout())
			if len(refs) == 0 {
				f.Warning("No tickets match %s", jql)
				return nil
			}
			table := output.NewTable(f.Writer(), "KEY", "STATUS", "PRIORITY", "SUMMARY", "CREATED")
			for _, r := range refs {
				created := r.Created
				if len(created) > 10 {
					created = created[:10]
				}
				table.AddRow(r.Key, r.Status, r.Priority, output.Truncate(r.Summary, 50), created)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project key")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Ticket status")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Raw JQL query (overrides --project and --status)")
	cmd.Flags().IntVarP(&limit, "limit", "l", defaultListLimit, "Maximum number of tickets")
	return cmd
}
