// Package vectorizecmder provides the vectorize command that (re)builds
// persona vectors on the griot API server.
package vectorizecmder

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidhonghikim/griot-sub000/api"
	"github.com/davidhonghikim/griot-sub000/api/client"
	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
	"github.com/davidhonghikim/griot-sub000/pkg/vectorize"
)

type vectorizeCommander struct {
	apiTarget string
	async     bool
}

const vectorizeLongDesc string = `Vectorize personas.

Without arguments every persona is vectorized in turn. With a persona id
only that persona is revectorized: its new vector is stored before the old
one is removed, so searches never miss it.

Use --async to queue the revectorization on the server and return at once.

Examples:
  griot vectorize
  griot vectorize griot
  griot vectorize griot --async`

const vectorizeShortDesc string = "Vectorize one or all personas"

func NewVectorizeCmd() *cobra.Command {
	cmder := &vectorizeCommander{}

	cmd := &cobra.Command{
		Use:   "vectorize [persona-id]",
		Short: vectorizeShortDesc,
		Long:  vectorizeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cmdutil.NewClient(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch {
			case len(args) == 0:
				return cmder.all(cmd, c, w)
			case cmder.async:
				return cmder.refresh(cmd, c, w, args[0])
			default:
				return cmder.one(cmd, c, w, args[0])
			}
		},
	}

	cmdutil.AddAPITargetFlag(cmd, &cmder.apiTarget)
	cmd.Flags().BoolVar(&cmder.async, "async", false, "Queue the revectorization and return immediately")

	return cmd
}

func (c *vectorizeCommander) all(cmd *cobra.Command, cl *client.Client, w io.Writer) error {
	var resp *api.VectorizeAllResponse
	err := cliui.Step(os.Stderr, "Vectorizing personas", func() error {
		var err error
		resp, err = cl.VectorizeAll(cmd.Context())
		return err
	})
	if err != nil {
		return err
	}

	for _, r := range resp.Results {
		printResult(w, r)
	}
	fmt.Fprintf(w, "\n  %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d succeeded · %d failed", resp.Succeeded, resp.Failed)))

	if resp.Failed > 0 {
		return fmt.Errorf("%d personas failed to vectorize", resp.Failed)
	}
	return nil
}

func (c *vectorizeCommander) one(cmd *cobra.Command, cl *client.Client, w io.Writer, id string) error {
	r, err := cl.Vectorize(cmd.Context(), id)
	if err != nil {
		return err
	}
	printResult(w, *r)
	if !r.Success {
		return fmt.Errorf("vectorizing %s: %s", id, r.Error)
	}
	return nil
}

func (c *vectorizeCommander) refresh(cmd *cobra.Command, cl *client.Client, w io.Writer, id string) error {
	r, err := cl.Refresh(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s Queued %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(r.PersonaID))
	return nil
}

func printResult(w io.Writer, r vectorize.Result) {
	if !r.Success {
		fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, cliui.KeyStyle.Render(r.EntityID), cliui.ErrorStyle.Render(r.Error))
		return
	}
	fmt.Fprintf(w, "  %s %s %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(r.EntityID),
		cliui.DimStyle.Render(fmt.Sprintf("%d chars · %s", r.ContentLength, cliui.FormatDuration(r.ProcessingTime))),
	)
}
