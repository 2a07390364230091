package util

import (
	"fmt"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/transport"
	"github.com/ValentinKolb/rfwd/rpc/transport/tcp"
	"github.com/ValentinKolb/rfwd/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupTargetFlags adds the flags describing the remote store and the sender tunables
func SetupTargetFlags(cmd *cobra.Command) {
	key := "host"
	cmd.PersistentFlags().String(key, "127.0.0.1", WrapString("Host of the remote store, or the socket path for the unix transport"))

	key = "port"
	cmd.PersistentFlags().Int(key, 6379, WrapString("Port of the remote store (ignored for the unix transport)"))

	key = "password"
	cmd.PersistentFlags().String(key, "", WrapString("Password of the remote store. Leave empty if the store does not require authentication (prefer RFWD_PASSWORD)"))

	key = "transport"
	cmd.PersistentFlags().String(key, "tcp", WrapString("Transport used to reach the remote store (tcp, unix)"))

	key = "databases"
	cmd.PersistentFlags().Int(key, 16, WrapString("Minimum number of databases the remote store must be configured with"))

	key = "db-name"
	cmd.PersistentFlags().String(key, "local", WrapString("Label of the local database, only used in logs"))

	key = "queue-capacity"
	cmd.PersistentFlags().Int(key, common.DefaultQueueCapacity, WrapString("Maximum number of queued commands per sender, producers block when it is reached"))

	key = "max-pending-replies"
	cmd.PersistentFlags().Int(key, common.DefaultMaxPendingReplies, WrapString("Number of unread replies after which the sender drains the pipeline"))

	key = "send-attempts"
	cmd.PersistentFlags().Int(key, common.DefaultSendAttempts, WrapString("How many times a command is sent (with a reconnect in between) before it is dropped"))

	key = "connect-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultConnectTimeout, WrapString("Timeout of a single connect attempt"))

	key = "send-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultSendTimeout, WrapString("Socket write timeout"))

	key = "recv-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultRecvTimeout, WrapString("Socket read timeout"))

	key = "reconnect-delay"
	cmd.PersistentFlags().Duration(key, common.DefaultReconnectDelay, WrapString("Pause between two failed connect attempts"))

	key = "liveness-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultLivenessInterval, WrapString("Minimum time between two liveness probes of the connection"))

	key = "poll-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultPollInterval, WrapString("How long the worker waits for a new command before checking for shutdown"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, only for tcp, 0 keeps the system default)"))
}

// InitConfig loads .env files and sets up viper to read RFWD_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("rfwd")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetSenderConfig reads the sender configuration from viper
func GetSenderConfig() common.SenderConfig {
	conf := common.SenderConfig{
		Host:              viper.GetString("host"),
		Port:              viper.GetInt("port"),
		Password:          viper.GetString("password"),
		ExpectedDatabases: viper.GetInt("databases"),
		DBName:            viper.GetString("db-name"),
		QueueCapacity:     viper.GetInt("queue-capacity"),
		MaxPendingReplies: viper.GetInt("max-pending-replies"),
		SendAttempts:      viper.GetInt("send-attempts"),
		ConnectTimeout:    viper.GetDuration("connect-timeout"),
		SendTimeout:       viper.GetDuration("send-timeout"),
		RecvTimeout:       viper.GetDuration("recv-timeout"),
		ReconnectDelay:    viper.GetDuration("reconnect-delay"),
		LivenessInterval:  viper.GetDuration("liveness-interval"),
		PollInterval:      viper.GetDuration("poll-interval"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}

	// a unix socket is addressed by its path only
	if viper.GetString("transport") == "unix" {
		conf.Port = 0
	}

	return conf.WithDefaults()
}

// GetClientFactory returns the factory for the configured transport
func GetClientFactory() (transport.ClientFactory, error) {
	return ClientFactory(viper.GetString("transport"))
}

// ClientFactory maps a transport name to its client factory
func ClientFactory(name string) (transport.ClientFactory, error) {
	switch name {
	case "tcp":
		return tcp.NewTCPClient, nil
	case "unix":
		return unix.NewUnixClient, nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
