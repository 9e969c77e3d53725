// Package recommendcmder provides the recommend command. It keeps a local
// per-user query history in the .griot/ directory and sends it along so
// recommendations follow what the user has been asking about.
package recommendcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/api"
	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/dotdir"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
)

type recommendCommander struct {
	apiTarget   string
	userID      string
	max         int
	noHistory   bool
	clear       bool
	historySize int
	asJSON      bool
}

const recommendLongDesc string = `Recommend personas for a request.

Recent queries by the same user are appended to the request so the
recommendations lean toward the user's ongoing interests. Each query is
recorded in .griot/history.json after it is sent.

Examples:
  griot recommend "a bedtime story"
  griot recommend "a bedtime story" --user ada --max 5
  griot recommend "something new" --no-history
  griot recommend --clear --user ada`

const recommendShortDesc string = "Recommend personas using your query history"

func NewRecommendCmd() *cobra.Command {
	cmder := &recommendCommander{}

	cmd := &cobra.Command{
		Use:   "recommend <query>",
		Short: recommendShortDesc,
		Long:  recommendLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			if cmder.clear {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmder.userID == "" {
				cmder.userID = currentUser()
			}

			ddm := dotdir.NewManager()
			configDir := cmdutil.ConfigDir(cmd)

			if cmder.clear {
				if err := ddm.ClearHistory(cmder.userID, configDir); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s Cleared history for %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(cmder.userID))
				return nil
			}

			var history []string
			if !cmder.noHistory {
				h, err := ddm.LoadHistory(configDir)
				if err != nil {
					return err
				}
				history = h.Queries(cmder.userID)
			}

			c, err := cmdutil.NewClient(cmd)
			if err != nil {
				return err
			}

			resp, err := c.Recommendations(cmd.Context(), api.RecommendationsRequest{
				Query:  args[0],
				UserID: cmder.userID,
				RecommendOptions: retrieval.RecommendOptions{
					MaxRecommendations: cmder.max,
					History:            history,
					IncludeReasoning:   true,
				},
			})
			if err != nil {
				return err
			}

			if resp.Success && !cmder.noHistory {
				if err := ddm.AppendHistory(cmder.userID, args[0], cmder.historySize, configDir); err != nil {
					return err
				}
			}

			return cmder.print(cmd.OutOrStdout(), resp)
		},
	}

	cmdutil.AddAPITargetFlag(cmd, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User id the history belongs to (default: current OS user)")
	cmd.Flags().IntVarP(&cmder.max, "max", "n", 3, "Maximum recommendations")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Neither use nor record query history")
	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Clear the user's query history and exit")
	cmd.Flags().IntVar(&cmder.historySize, "history-size", dotdir.DefaultHistoryLimit, "Queries kept per user")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the raw JSON response")

	return cmd
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "default"
}

func (c *recommendCommander) print(w io.Writer, resp *retrieval.RecommendationResponse) error {
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if !resp.Success {
		return fmt.Errorf("recommendation failed: %s", resp.Error)
	}
	if resp.Primary == nil {
		fmt.Fprintln(w, "No recommendations.")
		return nil
	}

	fmt.Fprintf(w, "\n%s\n", cliui.HeaderStyle.Render("Recommended"))
	printRecommendation(w, *resp.Primary)

	if len(resp.Alternatives) > 0 {
		fmt.Fprintf(w, "%s\n", cliui.HeaderStyle.Render("Also consider"))
		for _, alt := range resp.Alternatives {
			printRecommendation(w, alt)
		}
	}
	return nil
}

func printRecommendation(w io.Writer, r retrieval.Recommendation) {
	fmt.Fprintf(w, "  %s  %s %s\n",
		cliui.Percent(r.RelevanceScore),
		cliui.NameStyle.Render(r.Name),
		cliui.DimStyle.Render("("+r.PersonaID+")"),
	)
	if r.Reasoning != "" {
		fmt.Fprintf(w, "        %s\n", cliui.ValueStyle.Render(r.Reasoning))
	}
	fmt.Fprintln(w)
}
