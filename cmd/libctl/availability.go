package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"libraryapi/internal/httpx"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

func newAvailabilityCmd(connect connectFunc) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "availability <isbn>",
		Short: "Show copy counts for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			isbn := httpx.NormalizeISBN(args[0])
			if isbn == "" {
				return errors.New("isbn is required")
			}

			b, closeFn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			rep, err := b.ForISBN(cmd.Context(), isbn)
			if err != nil {
				return err
			}

			if asJSON {
				out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(rep, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "isbn\t%s\n", isbn)
			fmt.Fprintf(tw, "total\t%d\n", rep.TotalCopies)
			fmt.Fprintf(tw, "available\t%d\n", rep.AvailableCopies)
			fmt.Fprintf(tw, "borrowed\t%d\n", rep.BorrowedCopies)
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
