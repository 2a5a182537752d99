package cli

import (
	"fmt"
	"os"

	"github.com/hax0kartik/ctrcia"
	"github.com/spf13/cobra"
)

func init() {
	ticketCmd.Flags().AddFlagSet(&processFlags)
	tmdCmd.Flags().AddFlagSet(&processFlags)
	ciaCmd.Flags().AddFlagSet(&processFlags)
	rootCmd.AddCommand(ticketCmd, tmdCmd, ciaCmd)
}

type ticketOutput struct {
	File *string
	*ctrcia.Ticket
}

var ticketCmd = &cobra.Command{
	Use:   "ticket [file...]",
	Short: "Parse ticket files and print their contents as JSON",
	Long:  "Parse ticket files given as arguments, or stdin if none is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		return processFiles(args, func(filename *string, input *os.File) (interface{}, error) {
			ticket, err := ctrcia.ParseTicket(input)
			if err != nil {
				return nil, fmt.Errorf("invalid ticket: %w", err)
			}
			return ticketOutput{File: filename, Ticket: ticket}, nil
		})
	},
}

type tmdOutput struct {
	File *string
	*ctrcia.TMD
}

var tmdCmd = &cobra.Command{
	Use:   "tmd [file...]",
	Short: "Parse TMD files and print their contents as JSON",
	Long:  "Parse TMD files given as arguments, or stdin if none is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		return processFiles(args, func(filename *string, input *os.File) (interface{}, error) {
			tmd, err := ctrcia.ParseTMD(input)
			if err != nil {
				return nil, fmt.Errorf("invalid tmd: %w", err)
			}
			return tmdOutput{File: filename, TMD: tmd}, nil
		})
	},
}

type ciaOutput struct {
	File     *string
	Header   *ctrcia.CIAHeader
	Ticket   *ctrcia.Ticket
	TMD      *ctrcia.TMD
	Contents []ctrcia.CIAContentRegion
}

var ciaCmd = &cobra.Command{
	Use:   "cia [file...]",
	Short: "Parse CIA files and print their contents as JSON",
	Long:  "Parse CIA files given as arguments, or stdin if none is given; stdin requires seeking, so a real file argument is recommended",
	RunE: func(cmd *cobra.Command, args []string) error {
		return processFiles(args, func(filename *string, input *os.File) (interface{}, error) {
			cia, err := ctrcia.ReadCIA(input)
			if err != nil {
				return nil, fmt.Errorf("invalid cia: %w", err)
			}
			return ciaOutput{
				File:     filename,
				Header:   cia.Header,
				Ticket:   cia.Ticket,
				TMD:      cia.TMD,
				Contents: cia.Contents,
			}, nil
		})
	},
}
