package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var defaultExtensions = []string{
	"BIG-REQUESTS",
	"Generic Event Extension",
	"RANDR",
	"XINERAMA",
	"XInputExtension",
	"XKEYBOARD",
}

var extCmd = &cobra.Command{
	Use:   "ext [NAME...]",
	Short: "Query extensions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = defaultExtensions
		}

		d, err := openDisplay()
		if err != nil {
			return err
		}
		defer d.Close()

		for _, name := range args {
			info, err := d.QueryExtension(name)
			if err != nil {
				fmt.Println(errorStyle.Render(err.Error()))
				continue
			}
			if !info.Present {
				fmt.Printf("%s %s\n", keyStyle.Render(name), mutedStyle.Render("not present"))
				continue
			}
			fmt.Printf("%s major %d, first event %d, first error %d\n",
				keyStyle.Render(name), info.MajorOpcode, info.FirstEvent, info.FirstError)
		}
		return nil
	},
}
