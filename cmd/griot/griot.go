// Package griotcmder
package griotcmder

import (
	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	configcmder "github.com/davidhonghikim/griot-sub000/cmd/griot/config"
	ensemblecmder "github.com/davidhonghikim/griot-sub000/cmd/griot/ensemble"
	initcmder "github.com/davidhonghikim/griot-sub000/cmd/griot/init"
	querycmder "github.com/davidhonghikim/griot-sub000/cmd/griot/query"
	recommendcmder "github.com/davidhonghikim/griot-sub000/cmd/griot/recommend"
	searchcmder "github.com/davidhonghikim/griot-sub000/cmd/griot/search"
	servecmder "github.com/davidhonghikim/griot-sub000/cmd/griot/serve"
	statscmder "github.com/davidhonghikim/griot-sub000/cmd/griot/stats"
	vectorizecmder "github.com/davidhonghikim/griot-sub000/cmd/griot/vectorize"
	versioncmder "github.com/davidhonghikim/griot-sub000/cmd/version"
)

const griotLongDesc string = `Griot picks the personas best suited to a request and lets a local or
hosted language model answer in their voice.

Run the server, then query it:
  griot serve                      Run the API and MCP server
  griot query "tell me a story"    Ask a question with persona context
  griot search "storytelling"      Rank personas for a request
  griot ensemble "plan a heist"    Pick a diverse group of personas
  griot recommend "bedtime story"  Recommend personas from your history
  griot vectorize                  Rebuild persona vectors
  griot stats                      Show index and backend status`

const griotShortDesc string = "Griot - persona retrieval and generation"

func NewGriotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "griot",
		Short:         griotShortDesc,
		Long:          griotLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolP(cmdutil.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(cmdutil.FlagConfigDir, "", "Override the .griot/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(ensemblecmder.NewEnsembleCmd())
	cmd.AddCommand(recommendcmder.NewRecommendCmd())
	cmd.AddCommand(vectorizecmder.NewVectorizeCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
