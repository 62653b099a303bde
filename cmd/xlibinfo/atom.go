package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var atomCmd = &cobra.Command{
	Use:   "atom NAME...",
	Short: "Intern atoms and print their values",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		onlyIfExists, _ := cmd.Flags().GetBool("only-if-exists")

		d, err := openDisplay()
		if err != nil {
			return err
		}
		defer d.Close()

		for _, name := range args {
			atom, err := d.InternAtom(onlyIfExists, name)
			if err != nil {
				fmt.Println(errorStyle.Render(err.Error()))
				continue
			}
			if atom == 0 {
				fmt.Printf("%s %s\n", keyStyle.Render(name), mutedStyle.Render("None"))
				continue
			}
			fmt.Printf("%s %d\n", keyStyle.Render(name), atom)
		}
		return nil
	},
}

func init() {
	atomCmd.Flags().BoolP("only-if-exists", "e", false, "do not create atoms the server does not know")
}
