package cmd

import (
	"fmt"
	"github.com/ValentinKolb/rfwd/cmd/check"
	"github.com/ValentinKolb/rfwd/cmd/compare"
	"github.com/ValentinKolb/rfwd/cmd/forward"
	"github.com/ValentinKolb/rfwd/cmd/util"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "rfwd",
		Short: "asynchronous redis command forwarder",
		Long: fmt.Sprintf(`rfwd (v%s)

Forwards commands to a remote Redis compatible store through a bounded queue
and a pipelined connection that reconnects on its own.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: initialize,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rfwd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rfwd v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(forward.ForwardCmd)
	RootCmd.AddCommand(check.CheckCmd)
	RootCmd.AddCommand(compare.CompareCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// initialize loads the environment and installs the loggers before any command runs
func initialize(cmd *cobra.Command, _ []string) error {
	util.InitConfig()
	if err := viper.BindPFlag("log-level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
