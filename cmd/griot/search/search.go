// Package searchcmder provides the search command that ranks personas for a
// request.
package searchcmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/api"
	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
	"github.com/davidhonghikim/griot-sub000/pkg/utils"
)

type searchCommander struct {
	apiTarget string
	limit     int
	threshold float64
	best      bool
	exclude   []string
	quiet     bool
	asJSON    bool

	filter retrieval.PersonaFilter
}

const searchLongDesc string = `Rank personas by relevance to a request.

Prints each matching persona with its similarity score and the snippet of
its content that best matches the request. Requires a running griot API
server.

Use --best to print only the single most relevant persona, and --quiet to
print persona ids one per line for piping.

Examples:
  griot search "tell me a story"
  griot search "code review" --tag engineering --limit 3
  griot search "tell me a story" --best --exclude griot
  griot search "poetry" --quiet`

const searchShortDesc string = "Rank personas for a request"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cmdutil.NewClient(cmd)
			if err != nil {
				return err
			}

			var threshold *float64
			if cmd.Flags().Changed("threshold") {
				t := cmder.threshold
				threshold = &t
			}

			if cmder.best {
				resp, err := c.Best(cmd.Context(), api.BestRequest{
					Query: args[0],
					SelectOptions: retrieval.SelectOptions{
						Filter:          cmder.filter,
						Threshold:       threshold,
						ExcludePersonas: cmder.exclude,
					},
				})
				if err != nil {
					return err
				}
				return cmder.printBest(cmd.OutOrStdout(), resp)
			}

			req := retrieval.Request{
				Query:               args[0],
				Filter:              cmder.filter,
				SimilarityThreshold: threshold,
			}
			if cmd.Flags().Changed("limit") {
				limit := cmder.limit
				req.Limit = &limit
			}

			resp, err := c.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			return cmder.print(cmd.OutOrStdout(), resp)
		},
	}

	cmdutil.AddAPITargetFlag(cmd, &cmder.apiTarget)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 0, "Maximum results (default: server limit)")
	cmd.Flags().Float64Var(&cmder.threshold, "threshold", 0, "Minimum similarity score (default: server threshold)")
	cmd.Flags().BoolVar(&cmder.best, "best", false, "Print only the most relevant persona")
	cmd.Flags().StringSliceVar(&cmder.exclude, "exclude", nil, "Persona ids to skip with --best")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Print only persona ids, one per line")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the raw JSON response")
	AddFilterFlags(cmd, &cmder.filter)

	return cmd
}

// AddFilterFlags registers the persona metadata filter flags shared by the
// retrieval commands.
func AddFilterFlags(cmd *cobra.Command, f *retrieval.PersonaFilter) {
	cmd.Flags().StringVar(&f.Base, "base", "", "Only personas with this base")
	cmd.Flags().StringVar(&f.Variant, "variant", "", "Only personas with this variant")
	cmd.Flags().StringVar(&f.Author, "author", "", "Only personas by this author")
	cmd.Flags().StringSliceVar(&f.Tags, "tag", nil, "Only personas sharing at least one of these tags")
}

func (c *searchCommander) print(w io.Writer, resp *retrieval.Response) error {
	if c.asJSON {
		return encode(w, resp)
	}
	if !resp.Success {
		return fmt.Errorf("search failed: %s", resp.Error)
	}

	if c.quiet {
		for _, r := range resp.Results {
			fmt.Fprintln(w, r.PersonaID)
		}
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No personas found.")
		return nil
	}

	fmt.Fprintf(w, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Personas for:"),
		cliui.KeyStyle.Render(fmt.Sprintf("%q", resp.Query)),
	)
	for i, r := range resp.Results {
		PrintResult(w, i+1, r)
	}
	fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d results · average relevance %.2f · %s",
		resp.TotalResults, resp.AverageRelevance, cliui.FormatDuration(resp.ProcessingTime))))
	return nil
}

func (c *searchCommander) printBest(w io.Writer, resp *retrieval.SelectResponse) error {
	if c.asJSON {
		return encode(w, resp)
	}
	if !resp.Success {
		return fmt.Errorf("search failed: %s", resp.Error)
	}
	if resp.Persona == nil {
		if !c.quiet {
			fmt.Fprintln(w, "No persona found.")
		}
		return nil
	}
	if c.quiet {
		fmt.Fprintln(w, resp.Persona.PersonaID)
		return nil
	}

	fmt.Fprintln(w)
	PrintResult(w, 1, *resp.Persona)
	return nil
}

// PrintResult renders one ranked persona.
func PrintResult(w io.Writer, rank int, r retrieval.Result) {
	fmt.Fprintf(w, "  %s  %s  %s %s\n",
		cliui.RankStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.Percent(r.RelevanceScore),
		cliui.NameStyle.Render(r.Name),
		cliui.DimStyle.Render("("+r.PersonaID+")"),
	)
	if r.ContextSnippet != "" {
		fmt.Fprintf(w, "      %s\n", cliui.ValueStyle.Render(utils.Truncate(r.ContextSnippet, 120)))
	}
	fmt.Fprintln(w)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
