package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaffee/commandeer"
	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit/file"
	"github.com/spf13/cobra"
)

// MigrateMain is wrapped by NewMigrateCommand and only exported for testing
// purposes.
var MigrateMain *file.Main

// NewMigrateCommand returns a new cobra command wrapping MigrateMain.
func NewMigrateCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	MigrateMain = file.NewMain()
	MigrateMain.Stdout = stdout
	MigrateMain.Stderr = stderr
	migrateCommand := &cobra.Command{
		Use:   "migrate [path ...]",
		Short: "generate PDS4 labels for the data files in the given files and directories",
		Long: `Walks the given paths for data files, reads the PDS3 label of each, and
writes a PDS4 label expanded from the template. A file that fails is
reported and the rest of the batch carries on. The exit status is 1 when
any file failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			MigrateMain.Paths = append(MigrateMain.Paths, args...)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			report, err := MigrateMain.Run(ctx)
			if err != nil {
				return err
			}
			if code := report.ExitCode(); code != 0 {
				return errors.Errorf("%d files failed", len(report.Failures()))
			}
			return nil
		},
	}
	flags := migrateCommand.Flags()
	err = commandeer.Flags(flags, MigrateMain)
	if err != nil {
		panic(err)
	}
	return migrateCommand
}

func init() {
	subcommandFns["migrate"] = NewMigrateCommand
}
