// Package querycmder provides the query command that asks the griot API a
// question answered with persona context.
package querycmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
)

type queryCommander struct {
	apiTarget   string
	model       string
	personaID   string
	limit       int
	threshold   float64
	temperature float64
	maxTokens   int
	asJSON      bool
}

const queryLongDesc string = `Ask a question answered with persona context.

The server retrieves the personas most relevant to the question, builds a
prompt from them and sends it to the configured generation backend.

Examples:
  griot query "tell me a story about the river"
  griot query "review this plan" --persona critic
  griot query "explain recursion" --model mistral --temperature 0.2
  griot query "tell me a story" --json`

const queryShortDesc string = "Ask a question with persona context"

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cmdutil.NewClient(cmd)
			if err != nil {
				return err
			}

			resp, err := c.Query(cmd.Context(), cmder.request(cmd, args[0]))
			if err != nil {
				return err
			}
			return cmder.print(cmd.OutOrStdout(), resp)
		},
	}

	cmdutil.AddAPITargetFlag(cmd, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Generation model (default: server model)")
	cmd.Flags().StringVar(&cmder.personaID, "persona", "", "Restrict retrieval to one persona id")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 0, "Maximum personas to retrieve (default: server limit)")
	cmd.Flags().Float64Var(&cmder.threshold, "threshold", 0, "Minimum similarity score (default: server threshold)")
	cmd.Flags().Float64Var(&cmder.temperature, "temperature", 0, "Sampling temperature (default: server temperature)")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the raw JSON response")

	return cmd
}

// request builds the generation request. Only flags the user set are sent
// so the server's configured defaults apply otherwise.
func (c *queryCommander) request(cmd *cobra.Command, query string) generation.Request {
	req := generation.Request{
		Query:     query,
		PersonaID: c.personaID,
		Model:     c.model,
		MaxTokens: c.maxTokens,
	}
	if cmd.Flags().Changed("limit") {
		limit := c.limit
		req.Limit = &limit
	}
	if cmd.Flags().Changed("threshold") {
		threshold := c.threshold
		req.SimilarityThreshold = &threshold
	}
	if cmd.Flags().Changed("temperature") {
		temperature := c.temperature
		req.Temperature = &temperature
	}
	return req
}

func (c *queryCommander) print(w io.Writer, resp *generation.Response) error {
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if !resp.Success {
		return fmt.Errorf("query failed: %s", resp.Error)
	}

	fmt.Fprintf(w, "\n%s\n\n", strings.TrimSpace(resp.Response))

	names := make([]string, 0, len(resp.RetrievedDocuments))
	for _, d := range resp.RetrievedDocuments {
		names = append(names, d.Name)
	}
	if len(names) == 0 {
		names = append(names, "none")
	}

	m := resp.Metadata
	fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("personas:"), cliui.ValueStyle.Render(strings.Join(names, ", ")))
	fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%s · %d tokens · retrieval %s · generation %s",
		m.ModelUsed,
		m.TotalTokens,
		cliui.FormatDuration(m.RetrievalTime),
		cliui.FormatDuration(m.GenerationTime),
	)))
	return nil
}
