package cli

import (
	"fmt"
	"image/png"
	"os"

	"github.com/hax0kartik/ctrcia"
	"github.com/spf13/cobra"
)

var iconLarge bool

func init() {
	iconCmd.Flags().BoolVar(&iconLarge, "large", true, "extract the 48x48 icon instead of the 24x24 one")
	rootCmd.AddCommand(iconCmd)
}

var iconCmd = &cobra.Command{
	Use:   "icon <icon.smdh|icon.bin> <output.png>",
	Short: "Decode a title's SMDH icon and write it as a PNG",
	Long:  "Parses an SMDH blob, as stored in an ExeFS 'icon' file, and writes its icon bitmap as a PNG image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("unable to open file: %w", err)
		}
		defer input.Close()

		smdh, err := ctrcia.ParseSMDH(input)
		if err != nil {
			return fmt.Errorf("invalid smdh: %w", err)
		}

		var img = smdh.LargeImage
		if !iconLarge {
			img = smdh.SmallImage
		}
		decoded, err := img()
		if err != nil {
			return fmt.Errorf("failed to decode icon: %w", err)
		}

		output, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("unable to create output file: %w", err)
		}
		defer output.Close()

		return png.Encode(output, decoded)
	},
}
