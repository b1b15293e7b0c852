package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/jtriage/internal/attachments"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
	"github.com/Dicklesworthstone/jtriage/internal/output"
	"github.com/Dicklesworthstone/jtriage/internal/report"
	"github.com/Dicklesworthstone/jtriage/internal/util"
)

// reduceFileInfo is the per-file JSON entry for reduce.
type reduceFileInfo struct {
	logfilter.Result
	Format attachments.LogFormat `json:"format"`
}

// reduceResponse is the JSON body for reduce.
type reduceResponse struct {
	Success bool              `json:"success"`
	Files   []reduceFileInfo  `json:"files"`
	Stats   attachments.Stats `json:"stats"`
	Errors  []string          `json:"errors,omitempty"`
}

func newReduceCmd() *cobra.Command {
	var (
		filters    filterFlags
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "reduce FILE...",
		Short: "Reduce local log files or archives without contacting Jira",
		Long: `Reduce local log files, .zip, .tar, .tar.gz and .gz archives under the token
budget and print the labelled sections.

Examples:
  jtriage reduce server.log
  jtriage reduce logs.zip --keywords=deadlock --max-tokens=2000
  jtriage reduce app.log worker.log -o reduced.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := filters.apply(cmd, currentConfig())
			if err != nil {
				return err
			}
			reducer, keywords, err := newReducer(c)
			if err != nil {
				return err
			}

			loader := attachments.NewLoader(c.Attachments.MaxSizeMB, slog.Default())
			files, loadErrs := loader.LoadPaths(args)
			var errMsgs []string
			for _, e := range loadErrs {
				slog.Warn("skipping file", "error", e)
				errMsgs = append(errMsgs, e.Error())
			}
			if len(files) == 0 {
				return fmt.Errorf("no readable log files among %d argument(s)", len(args))
			}
			results := reducer.ReduceAll(files, keywords)

			if IsJSONOutput() {
				resp := reduceResponse{Success: true, Stats: attachments.ComputeStats(files), Errors: errMsgs}
				for i, r := range results {
					resp.Files = append(resp.Files, reduceFileInfo{Result: r, Format: attachments.DetectFormat(files[i].Lines)})
				}
				return output.WriteJSON(cmd.OutOrStdout(), resp)
			}

			printReduceTable(GetFormatter(cmd.ErrOrStderr()), files, results)
			content := report.FormatResults(results)
			if outputPath == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), content)
				return err
			}
			if err := report.Write(outputPath, content); err != nil {
				return err
			}
			GetFormatter(cmd.ErrOrStderr()).Success("Reduced %s written to %s",
				output.CountStr(len(results), "file", "files"), outputPath)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the reduced sections to this file")
	return cmd
}

func printReduceTable(f *output.Formatter, files []logfilter.LogFile, results []logfilter.Result) {
	table := output.NewTable(f.Writer(), "FILE", "FORMAT", "STRATEGY", "SHOWN", "TOTAL", "SIZE", "TOKENS")
	table.SetMaxColumnWidth(48)
	for i, r := range results {
		table.AddRow(
			r.Name,
			string(attachments.DetectFormat(files[i].Lines)),
			string(r.Strategy),
			fmt.Sprint(report.ShownLines(r)),
			fmt.Sprint(r.TotalLines),
			util.FormatBytes(files[i].SizeBytes),
			fmt.Sprintf("~%d", r.EstimatedTokens),
		)
	}
	table.Render()
	fmt.Fprintln(f.Writer())
}
