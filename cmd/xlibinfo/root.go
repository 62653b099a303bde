package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/xlib"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:   "xlibinfo",
		Short: "Inspect an X server through xlib",
		Long: `xlibinfo opens a connection to an X server and reports on it.
Settings come from flags, the environment (XLIBINFO_*) and an optional
xlibinfo.toml in the current directory or ~/.config/xlibinfo.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return err
			}
			xlib.SetLogLevel(viper.GetString("log_level"))
			return nil
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default xlibinfo.toml)")
	flags.StringP("display", "d", "", "X display to connect to (default $DISPLAY)")
	flags.Bool("sync", false, "make every request wait for the server")
	flags.Bool("threads", false, "open the display for use from several goroutines")
	flags.String("log-level", "info", "xlib log level (debug, info, warn, error)")

	viper.BindPFlag("display", flags.Lookup("display"))
	viper.BindPFlag("sync", flags.Lookup("sync"))
	viper.BindPFlag("threads", flags.Lookup("threads"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(atomCmd)
	rootCmd.AddCommand(seqwrapCmd)
	rootCmd.AddCommand(extCmd)
	rootCmd.AddCommand(watchCmd)
}

func initConfig() error {
	viper.SetConfigName("xlibinfo")
	viper.SetConfigType("toml")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "xlibinfo"))
		}
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("xlibinfo")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "reading config")
		}
	}
	return nil
}

// openDisplay opens the configured display. Settings not given on the
// command line or in the config file come from the usual X environment.
func openDisplay() (*xlib.Display, error) {
	cfg := xlib.LoadConfig()
	if viper.GetBool("sync") {
		cfg.Synchronous = true
	}
	if n := viper.GetInt("buffer_size"); n > 0 {
		cfg.BufferSize = n
	}
	opts := []xlib.Option{xlib.WithConfig(cfg)}
	if viper.GetBool("threads") {
		opts = append(opts, xlib.WithThreads())
	}
	return xlib.Open(viper.GetString("display"), opts...)
}
