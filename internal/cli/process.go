package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

type processFunc func(filename *string, input *os.File) (interface{}, error)

var (
	processFlags pflag.FlagSet
	compact      = processFlags.BoolP("compact", "c", false, "disable pretty-printing of JSON output")
)

// processFiles runs process over each named file, or stdin when none are
// given, emitting one JSON value per file to stdout. This mirrors how the
// original single-purpose CLI this tool grew from reported parsed
// structures, now reused by the read-only verify subcommands.
func processFiles(filenames []string, process processFunc) error {
	encoder := json.NewEncoder(os.Stdout)
	if !*compact {
		encoder.SetIndent("", "  ")
	}
	encoder.SetEscapeHTML(false)

	if len(filenames) == 0 {
		value, err := process(nil, os.Stdin)
		if err != nil {
			return err
		}
		return encoder.Encode(value)
	}

	for _, filename := range filenames {
		if err := processFile(filename, process, encoder); err != nil {
			return err
		}
	}
	return nil
}

func processFile(filename string, process processFunc, encoder *json.Encoder) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("unable to open file: %w", err)
	}
	defer file.Close()

	value, err := process(&filename, file)
	if err != nil {
		return err
	}
	return encoder.Encode(value)
}
