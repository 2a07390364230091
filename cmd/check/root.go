package check

import (
	"context"
	"fmt"
	cmdUtil "github.com/ValentinKolb/rfwd/cmd/util"
	"github.com/ValentinKolb/rfwd/lib/sender"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the remote store accepts forwarded commands",
	Long: `Connect to the remote store, authenticate and verify that it is configured with enough databases.
The command exits with a non-zero status naming the problem if any check fails.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return cmdUtil.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cmdUtil.SetupTargetFlags(CheckCmd)

	key := "timeout"
	CheckCmd.PersistentFlags().Duration(key, 10*time.Second, cmdUtil.WrapString("How long to keep trying to reach the remote store"))
}

func run(_ *cobra.Command, _ []string) error {
	factory, err := cmdUtil.GetClientFactory()
	if err != nil {
		return err
	}
	conf := cmdUtil.GetSenderConfig()

	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout"))
	defer cancel()

	if err := sender.CheckTarget(ctx, conf, factory); err != nil {
		return fmt.Errorf("check of %s failed: %w", conf.Endpoint(), err)
	}

	fmt.Printf("%s is ready (at least %d databases)\n", conf.Endpoint(), conf.ExpectedDatabases)
	return nil
}
