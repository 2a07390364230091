package compare

import (
	"context"
	"fmt"
	cmdUtil "github.com/ValentinKolb/rfwd/cmd/util"
	libCompare "github.com/ValentinKolb/rfwd/lib/compare"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
)

var CompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the content of two stores",
	Long: `Scan databases 0..N-1 of the source and the target store and print every key whose type or value differs,
or that exists on one side only. Strings, lists, sets, sorted sets and hashes are compared.
The command exits with a non-zero status if inconsistent keys were found.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return cmdUtil.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	key := "source-host"
	CompareCmd.PersistentFlags().String(key, "127.0.0.1", cmdUtil.WrapString("Host of the source store, or the socket path for the unix transport"))

	key = "source-port"
	CompareCmd.PersistentFlags().Int(key, 9221, cmdUtil.WrapString("Port of the source store"))

	key = "source-password"
	CompareCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Password of the source store"))

	key = "source-transport"
	CompareCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("Transport used to reach the source store (tcp, unix)"))

	key = "host"
	CompareCmd.PersistentFlags().String(key, "127.0.0.1", cmdUtil.WrapString("Host of the target store, or the socket path for the unix transport"))

	key = "port"
	CompareCmd.PersistentFlags().Int(key, 6379, cmdUtil.WrapString("Port of the target store"))

	key = "password"
	CompareCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Password of the target store (prefer RFWD_PASSWORD)"))

	key = "transport"
	CompareCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("Transport used to reach the target store (tcp, unix)"))

	key = "databases"
	CompareCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Number of databases to compare, starting at 0"))

	key = "scan-count"
	CompareCmd.PersistentFlags().Int64(key, libCompare.DefaultScanCount, cmdUtil.WrapString("COUNT hint for SCAN"))
}

func run(_ *cobra.Command, _ []string) error {
	source, err := opener("source-")
	if err != nil {
		return err
	}
	target, err := opener("")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &libCompare.Comparer{
		Source:    source,
		Target:    target,
		Databases: viper.GetInt("databases"),
		ScanCount: viper.GetInt64("scan-count"),
	}
	report, err := c.Run(ctx)
	if report != nil {
		fmt.Print(report)
	}
	if err != nil {
		return err
	}
	if !report.Consistent() {
		return fmt.Errorf("found %d inconsistent keys", len(report.Inconsistent))
	}
	return nil
}

// opener builds the go-redis opener from the flags with the given prefix
func opener(prefix string) (libCompare.Opener, error) {
	host := viper.GetString(prefix + "host")
	password := viper.GetString(prefix + "password")

	switch network := viper.GetString(prefix + "transport"); network {
	case "unix":
		return libCompare.RedisOpener(network, host, password), nil
	case "tcp":
		addr := net.JoinHostPort(host, strconv.Itoa(viper.GetInt(prefix+"port")))
		return libCompare.RedisOpener(network, addr, password), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", network)
	}
}
