package main

import (
	"fmt"

	"github.com/BurntSushi/xlib"
	"github.com/spf13/cobra"
)

const propertyNotify = 28

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print property changes on the root window",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")

		d, err := openDisplay()
		if err != nil {
			return err
		}
		defer d.Close()

		root := d.RootWindow()
		if err := d.SelectInput(root, xlib.PropertyChangeMask); err != nil {
			return err
		}

		for i := 0; count <= 0 || i < count; i++ {
			ev, err := d.NextEvent()
			if err != nil {
				return err
			}
			if ev.Type != propertyNotify {
				fmt.Printf("event %d (serial %d)\n", ev.Type, ev.Serial)
				continue
			}
			atom := get32(ev.Raw[8:])
			state := "new value"
			if ev.Raw[16] == 1 {
				state = "deleted"
			}
			fmt.Printf("%s %s %s\n", mutedStyle.Render(fmt.Sprintf("[%d]", ev.Serial)), keyStyle.Render(fmt.Sprintf("atom %d", atom)), state)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().IntP("count", "c", 0, "stop after this many events, 0 to run forever")
}

func get32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
