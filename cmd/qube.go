package cmd

import (
	"fmt"
	"io"

	"github.com/jaffee/commandeer"
	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/qube"
	"github.com/spf13/cobra"
)

// QubeMain is wrapped by NewQubeCommand and only exported for testing
// purposes.
var QubeMain *qube.Main

// NewQubeCommand returns a new cobra command wrapping QubeMain.
func NewQubeCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	QubeMain = qube.NewMain()
	qubeCommand := &cobra.Command{
		Use:   "qube",
		Short: "copy the core of a VIMS cube without its suffix planes",
		RunE: func(cmd *cobra.Command, args []string) error {
			lay, n, err := QubeMain.Run()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s: %s core (%d x %d x %d) written to %s\n",
				QubeMain.In, lay.Order(), lay.Core[0], lay.Core[1], lay.Core[2], QubeMain.Out)
			fmt.Fprintf(stdout, "%s in %d records\n", pds4kit.Bytes(n), lay.Records(n))
			return nil
		},
	}
	flags := qubeCommand.Flags()
	err = commandeer.Flags(flags, QubeMain)
	if err != nil {
		panic(err)
	}
	return qubeCommand
}

func init() {
	subcommandFns["qube"] = NewQubeCommand
}
