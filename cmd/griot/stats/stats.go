// Package statscmder provides the stats command that reports index and
// generation backend status.
package statscmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
)

type statsCommander struct {
	apiTarget string
}

const statsLongDesc string = `Show persona index statistics and generation backend status.

Examples:
  griot stats
  griot stats --api-target http://griot.internal:8081`

const statsShortDesc string = "Show index and backend status"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmdutil.AddAPITargetFlag(cmd, &cmder.apiTarget)

	return cmd
}

func (c *statsCommander) run(cmd *cobra.Command) error {
	cl, err := cmdutil.NewClient(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	stats, err := cl.Stats(ctx)
	if err != nil {
		return err
	}
	if !stats.Success {
		return fmt.Errorf("stats failed: %s", stats.Error)
	}

	fmt.Fprintf(w, "\n%s\n", cliui.HeaderStyle.Render("Index"))
	row(w, "vectorized personas", fmt.Sprintf("%d / %d", stats.VectorizedPersonas, stats.TotalPersonas))
	row(w, "stored documents", fmt.Sprintf("%d", stats.StoredDocuments))
	row(w, "average content", fmt.Sprintf("%.0f chars", stats.AverageContentLength))

	fmt.Fprintf(w, "\n%s\n", cliui.HeaderStyle.Render("Backend"))
	health, err := cl.Health(ctx)
	if err != nil {
		fmt.Fprintf(w, "  %s %s\n\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()))
		return nil
	}
	row(w, "backend", health.Backend)
	row(w, "endpoint", health.Endpoint)
	row(w, "model", health.Model)

	models, err := cl.Models(ctx)
	if err != nil {
		row(w, "models", "unavailable")
	} else {
		row(w, "models", strings.Join(models.Models, ", "))
	}
	fmt.Fprintf(w, "  %s healthy\n\n", cliui.SuccessMark)
	return nil
}

func row(w io.Writer, key, value string) {
	fmt.Fprint(w, cliui.KeyValue(key, 20, value))
}
