/*
Copyright © 2026 Paulo Suderio
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "skirmish",
	Short: "Turn-based combat simulator",
	Long: `skirmish runs turn-based combat encounters described in YAML files.

Encounters can be played out by the autopilot (simulate, batch) or one
command at a time (play). Every combat is saved after each change and
can be resumed with load.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.skirmish.yaml)")
	pf.StringSlice("data-dir", nil, "extra directories searched for encounters, templates and catalogs")
	pf.String("store-driver", "", "snapshot store: file or sqlite")
	pf.String("store-path", "", "snapshot directory (file) or database path (sqlite)")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "text or json")
	pf.Uint64("seed", 0, "random seed; 0 picks one per combat")

	for key, flag := range map[string]string{
		"data_dirs":    "data-dir",
		"store_driver": "store-driver",
		"store_path":   "store-path",
		"log_level":    "log-level",
		"log_format":   "log-format",
		"seed":         "seed",
	} {
		cobra.CheckErr(viper.BindPFlag(key, pf.Lookup(flag)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".skirmish")
	}

	viper.SetEnvPrefix("SKIRMISH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
