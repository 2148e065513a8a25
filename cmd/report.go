package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/rms-node/pds4kit/file"
	"github.com/spf13/cobra"
)

// ReportMain is wrapped by NewReportCommand and only exported for testing
// purposes.
var ReportMain *file.ReportMain

// NewReportCommand returns a new cobra command wrapping ReportMain.
func NewReportCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	ReportMain = file.NewReportMain()
	ReportMain.Stdout = stdout
	reportCommand := &cobra.Command{
		Use:   "report",
		Short: "report the results recorded in a migration ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := ReportMain.Run()
			return err
		},
	}
	flags := reportCommand.Flags()
	err = commandeer.Flags(flags, ReportMain)
	if err != nil {
		panic(err)
	}
	return reportCommand
}

func init() {
	subcommandFns["report"] = NewReportCommand
}
