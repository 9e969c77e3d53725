// Package ensemblecmder provides the ensemble command that picks a diverse
// group of relevant personas.
package ensemblecmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/api"
	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	searchcmder "github.com/davidhonghikim/griot-sub000/cmd/griot/search"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
)

type ensembleCommander struct {
	apiTarget     string
	size          int
	maxSimilarity float64
	threshold     float64
	asJSON        bool

	filter retrieval.PersonaFilter
}

const ensembleLongDesc string = `Pick a diverse group of personas for a request.

Candidates are taken in relevance order and a persona joins the ensemble
only if it is less similar than --max-similarity to every member already
chosen, so near-duplicates are skipped.

Examples:
  griot ensemble "plan a heist"
  griot ensemble "design review" --size 4 --max-similarity 0.7`

const ensembleShortDesc string = "Pick a diverse group of personas"

func NewEnsembleCmd() *cobra.Command {
	cmder := &ensembleCommander{}

	cmd := &cobra.Command{
		Use:   "ensemble <query>",
		Short: ensembleShortDesc,
		Long:  ensembleLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cmdutil.NewClient(cmd)
			if err != nil {
				return err
			}

			req := api.EnsembleRequest{
				Query: args[0],
				Size:  cmder.size,
				EnsembleOptions: retrieval.EnsembleOptions{
					Filter:        cmder.filter,
					MaxSimilarity: cmder.maxSimilarity,
				},
			}
			if cmd.Flags().Changed("threshold") {
				t := cmder.threshold
				req.Threshold = &t
			}

			resp, err := c.Ensemble(cmd.Context(), req)
			if err != nil {
				return err
			}
			return cmder.print(cmd.OutOrStdout(), resp)
		},
	}

	cmdutil.AddAPITargetFlag(cmd, &cmder.apiTarget)
	cmd.Flags().IntVarP(&cmder.size, "size", "n", 3, "Number of personas in the ensemble")
	cmd.Flags().Float64Var(&cmder.maxSimilarity, "max-similarity", 0, "Maximum pairwise similarity between members (default: 0.8)")
	cmd.Flags().Float64Var(&cmder.threshold, "threshold", 0, "Minimum similarity score (default: server threshold)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the raw JSON response")
	searchcmder.AddFilterFlags(cmd, &cmder.filter)

	return cmd
}

func (c *ensembleCommander) print(w io.Writer, resp *retrieval.EnsembleResponse) error {
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if !resp.Success {
		return fmt.Errorf("ensemble failed: %s", resp.Error)
	}
	if len(resp.Members) == 0 {
		fmt.Fprintln(w, "No personas found.")
		return nil
	}

	fmt.Fprintf(w, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Ensemble for:"),
		cliui.KeyStyle.Render(fmt.Sprintf("%q", resp.Query)),
	)
	for i, m := range resp.Members {
		searchcmder.PrintResult(w, i+1, m)
	}
	fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d of %d candidates", len(resp.Members), resp.Candidates)))
	return nil
}
