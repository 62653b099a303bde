package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seqwrapCmd = &cobra.Command{
	Use:   "seqwrap",
	Short: "Make round trips across the 16 bit sequence number wrap",
	Long: `seqwrap interns the same atom over and over, more times than 16 bit
sequence numbers can tell apart, and checks that every reply arrives.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("count")
		every, _ := cmd.Flags().GetInt("every")
		name, _ := cmd.Flags().GetString("atom")

		d, err := openDisplay()
		if err != nil {
			return err
		}
		defer d.Close()

		want, err := d.InternAtom(true, name)
		if err != nil {
			return err
		}
		for i := 1; i <= n; i++ {
			seq := d.NextRequest()
			atom, err := d.InternAtom(true, name)
			if err != nil {
				return err
			}
			if atom != want {
				return fmt.Errorf("round trip %d (sequence %d): got atom %d, want %d", i, seq, atom, want)
			}
			if every > 0 && (i%every == 0 || i == n) {
				fmt.Printf("%d. Sequence: %d, Atom: %d\n", i, seq, atom)
			}
		}
		fmt.Printf("%s %d\n", keyStyle.Render("last processed"), d.LastKnownRequestProcessed())
		return nil
	},
}

func init() {
	seqwrapCmd.Flags().IntP("count", "n", 1<<16+10, "number of round trips")
	seqwrapCmd.Flags().Int("every", 4096, "print every n-th round trip, 0 for none")
	seqwrapCmd.Flags().String("atom", "_NET_ACTIVE_WINDOW", "atom to intern")
}
