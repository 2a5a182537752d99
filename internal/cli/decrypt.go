package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/hax0kartik/ctrcia"
	"github.com/spf13/cobra"
)

var (
	decryptInput  string
	decryptOutput string
	decryptRehash bool
	decryptStrict bool
)

func init() {
	decryptCmd.Flags().StringVar(&decryptInput, "input", "", "path to the CIA file to decrypt (required)")
	decryptCmd.Flags().StringVar(&decryptOutput, "output", "", "output CIA file path, defaults to the input path with .decrypted.cia appended")
	decryptCmd.Flags().BoolVar(&decryptRehash, "rehash", false, "recompute content hashes in the TMD from the decrypted bytes")
	decryptCmd.Flags().BoolVar(&decryptStrict, "strict", false, "fail instead of warn when a content's hash doesn't match the TMD")
	rootCmd.AddCommand(decryptCmd)
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt a CIA's NCCH contents for use outside retail hardware",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if decryptInput == "" {
			return withExitCode(4, fmt.Errorf("--input is required"))
		}

		output := decryptOutput
		if output == "" {
			output = strings.TrimSuffix(decryptInput, ".cia") + ".decrypted.cia"
		}

		keys, err := loadKeyProvider(keyFile, seedDBFlag)
		if err != nil {
			return withExitCode(4, err)
		}

		in, err := os.Open(decryptInput)
		if err != nil {
			return withExitCode(4, fmt.Errorf("failed to open input file: %w", err))
		}
		defer in.Close()

		out, err := os.Create(output)
		if err != nil {
			return withExitCode(4, fmt.Errorf("failed to create output file: %w", err))
		}
		defer out.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		progress := newProgress(0)
		defer progress.finish()

		err = ctrcia.DecryptCIA(ctx, keys, in, out, ctrcia.DecryptOptions{
			Rehash:   decryptRehash,
			Strict:   decryptStrict,
			Progress: progress,
		})
		if err != nil {
			out.Close()
			os.Remove(output)
			return withExitCode(decryptExitCode(err), err)
		}
		return nil
	},
}

// decryptExitCode maps a DecryptCIA failure to spec.md §6's decrypt exit
// codes: 4 for a parse failure (the CIA/TMD/ticket couldn't be read), 5 for
// a crypto failure (title-key unwrap, NCCH decrypt, or a strict hash
// mismatch).
func decryptExitCode(err error) int {
	var e *ctrcia.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case ctrcia.CryptoError:
			return 5
		}
	}
	return 4
}
