package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xlib"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Width(24)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

type screenReport struct {
	Number     int      `yaml:"number"`
	Root       string   `yaml:"root"`
	Size       string   `yaml:"size"`
	RootDepth  byte     `yaml:"root_depth"`
	RootVisual string   `yaml:"root_visual"`
	Depths     []string `yaml:"depths"`
}

type infoReport struct {
	Display         string         `yaml:"display"`
	Vendor          string         `yaml:"vendor"`
	Release         uint32         `yaml:"release"`
	Protocol        string         `yaml:"protocol"`
	MaxRequestSize  uint32         `yaml:"max_request_size"`
	DefaultScreen   int            `yaml:"default_screen"`
	Keycodes        string         `yaml:"keycodes"`
	PixmapFormats   []string       `yaml:"pixmap_formats"`
	Screens         []screenReport `yaml:"screens"`
	ResourceManager bool           `yaml:"resource_manager"`
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the connection setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDisplay()
		if err != nil {
			return err
		}
		defer d.Close()

		r := buildInfo(d)
		switch format := viper.GetString("format"); format {
		case "yaml":
			out, err := yaml.Marshal(r)
			if err != nil {
				return errors.Wrap(err, "encoding report")
			}
			fmt.Print(string(out))
		case "text", "":
			fmt.Println(renderInfo(r))
		default:
			return errors.Errorf("unknown format %q", format)
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().StringP("format", "f", "text", "output format (text or yaml)")
	viper.BindPFlag("format", infoCmd.Flags().Lookup("format"))
}

func buildInfo(d *xlib.Display) infoReport {
	s := d.Setup()
	r := infoReport{
		Display:         d.DisplayString(),
		Vendor:          s.Vendor,
		Release:         s.ReleaseNumber,
		Protocol:        fmt.Sprintf("%d.%d", s.ProtocolMajorVersion, s.ProtocolMinorVersion),
		MaxRequestSize:  d.MaxRequestSize(),
		DefaultScreen:   d.DefaultScreenNumber(),
		Keycodes:        fmt.Sprintf("%d-%d", s.MinKeycode, s.MaxKeycode),
		ResourceManager: d.ResourceManagerString() != "",
	}
	for _, f := range s.PixmapFormats {
		r.PixmapFormats = append(r.PixmapFormats,
			fmt.Sprintf("depth %d, %d bpp, pad %d", f.Depth, f.BitsPerPixel, f.ScanlinePad))
	}
	for i, scr := range d.Screens() {
		sr := screenReport{
			Number:     i,
			Root:       fmt.Sprintf("0x%x", scr.Root),
			Size:       fmt.Sprintf("%dx%d pixels (%dx%d mm)", scr.WidthInPixels, scr.HeightInPixels, scr.WidthInMillimeters, scr.HeightInMillimeters),
			RootDepth:  scr.RootDepth,
			RootVisual: fmt.Sprintf("0x%x", scr.RootVisual),
		}
		for _, dep := range scr.AllowedDepths {
			sr.Depths = append(sr.Depths, fmt.Sprintf("%d (%d visuals)", dep.Depth, len(dep.Visuals)))
		}
		r.Screens = append(r.Screens, sr)
	}
	return r
}

func renderInfo(r infoReport) string {
	var b strings.Builder
	line := func(key string, value interface{}) {
		b.WriteString(keyStyle.Render(key))
		fmt.Fprintf(&b, "%v\n", value)
	}

	b.WriteString(titleStyle.Render("Display " + r.Display))
	b.WriteString("\n")
	line("vendor", r.Vendor)
	line("release", r.Release)
	line("protocol", r.Protocol)
	line("max request size", fmt.Sprintf("%d words", r.MaxRequestSize))
	line("keycodes", r.Keycodes)
	line("default screen", r.DefaultScreen)
	line("resource manager", r.ResourceManager)
	for _, f := range r.PixmapFormats {
		line("pixmap format", f)
	}

	out := []string{boxStyle.Render(strings.TrimRight(b.String(), "\n"))}
	for _, scr := range r.Screens {
		var sb strings.Builder
		sb.WriteString(titleStyle.Render(fmt.Sprintf("Screen %d", scr.Number)))
		sb.WriteString("\n")
		sb.WriteString(keyStyle.Render("root") + scr.Root + "\n")
		sb.WriteString(keyStyle.Render("size") + scr.Size + "\n")
		sb.WriteString(keyStyle.Render("root depth") + fmt.Sprint(scr.RootDepth) + "\n")
		sb.WriteString(keyStyle.Render("root visual") + scr.RootVisual + "\n")
		sb.WriteString(keyStyle.Render("depths") + mutedStyle.Render(strings.Join(scr.Depths, ", ")))
		out = append(out, boxStyle.Render(sb.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}
