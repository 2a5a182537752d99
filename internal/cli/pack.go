package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hax0kartik/ctrcia"
	"github.com/spf13/cobra"
)

var (
	packInput            string
	packOutput           string
	packRecursive        bool
	packEnsureTicket     bool
	packTitleKeyPassword string
	packStrict           bool
	packCleanup          bool
)

func init() {
	packCmd.Flags().StringVar(&packInput, "input", "", "path to a directory of loose CDN downloads (required)")
	packCmd.Flags().StringVar(&packOutput, "output", "", "output CIA file path, defaults to the input directory's name with a .cia extension")
	packCmd.Flags().BoolVar(&packRecursive, "recursive", false, "scan the source directory recursively")
	packCmd.Flags().BoolVar(&packEnsureTicket, "ensure-ticket-exists", false, "synthesize a ticket if none is found")
	packCmd.Flags().StringVar(&packTitleKeyPassword, "title-key-password", "", "password for synthetic title key generation")
	packCmd.Flags().BoolVar(&packStrict, "strict", false, "fail instead of warn when a content's hash doesn't match the TMD")
	packCmd.Flags().BoolVar(&packCleanup, "cleanup", false, "remove the source directory's loose files after a successful pack")
	rootCmd.AddCommand(packCmd)
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack loose CDN content into a CIA file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if packInput == "" {
			return withExitCode(2, fmt.Errorf("--input is required"))
		}

		output := packOutput
		if output == "" {
			output = filepath.Base(filepath.Clean(packInput)) + ".cia"
		}

		keys, err := loadKeyProvider(keyFile, seedDBFlag)
		if err != nil {
			return withExitCode(2, err)
		}

		out, err := os.Create(output)
		if err != nil {
			return withExitCode(3, fmt.Errorf("failed to create output file: %w", err))
		}
		defer out.Close()

		progress := newProgress(0)
		defer progress.finish()

		err = ctrcia.PackTitle(keys, packInput, out, ctrcia.PackOptions{
			Recursive:          packRecursive,
			EnsureTicketExists: packEnsureTicket,
			TitleKeyPassword:   packTitleKeyPassword,
			Strict:             packStrict,
			Progress:           progress,
		})
		if err != nil {
			out.Close()
			os.Remove(output)
			return withExitCode(packExitCode(err), err)
		}

		if packCleanup {
			if err := os.RemoveAll(packInput); err != nil {
				return withExitCode(3, fmt.Errorf("pack succeeded but cleanup failed: %w", err))
			}
		}

		return nil
	},
}

// packExitCode maps a PackTitle failure to spec.md §6's pack exit codes: 2
// for a scan failure (the source directory or its TMD/ticket couldn't be
// read or made sense of), 3 for everything downstream of that (writing the
// CIA itself).
func packExitCode(err error) int {
	var e *ctrcia.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case ctrcia.InputMissing, ctrcia.FormatError:
			return 2
		}
	}
	return 3
}
