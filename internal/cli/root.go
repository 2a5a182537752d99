package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	keyFile    string
	seedDBFlag string
)

var rootCmd = &cobra.Command{
	Use:   "ctrcia",
	Short: "Pack Nintendo 3DS CDN content into CIA files, and decrypt CIA files for emulator use",
}

func init() {
	loadDotenv(".env")
	initLogging()

	rootCmd.PersistentFlags().StringVar(&keyFile, "key-file", "", "path to a file listing the six common keys, one per line")
	rootCmd.PersistentFlags().StringVar(&seedDBFlag, "seed-db", "", "path to a seeddb.bin file, for titles that use seed-derived NCCH keys")
}

// Execute runs the CLI, exiting with the code spec.md §6 assigns to the
// command that failed (InputMissing/FormatError/CryptoError mapped to a
// command-specific code by pack/decrypt/self-update's RunE; anything else
// reported at the default exit code 1).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
