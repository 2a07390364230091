package common

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultQueueCapacity     = 100000
	DefaultMaxPendingReplies = 200
	DefaultSendAttempts      = 3
	DefaultConnectTimeout    = 1 * time.Second
	DefaultSendTimeout       = 10 * time.Second
	DefaultRecvTimeout       = 10 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
	DefaultLivenessInterval  = 1 * time.Second
	DefaultPollInterval      = 100 * time.Millisecond
)

// --------------------------------------------------------------------------
// Socket configuration structs
// --------------------------------------------------------------------------

// SocketConf holds settings that apply to every stream socket
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// Remote client configuration struct
// --------------------------------------------------------------------------

// ClientConfig is everything a transport.IRemoteClient needs to open one connection
type ClientConfig struct {
	// Endpoint is host:port for tcp or a socket path for unix
	Endpoint       string
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	RecvTimeout    time.Duration

	SocketConf SocketConf
	TCPConf    TCPConf
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Remote Client")
	addField("Endpoint", c.Endpoint)
	addField("Connect Timeout", c.ConnectTimeout.String())
	addField("Send Timeout", c.SendTimeout.String())
	addField("Recv Timeout", c.RecvTimeout.String())

	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.SocketConf.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.SocketConf.ReadBufferSize))
	addField("TCP NoDelay", strconv.FormatBool(c.TCPConf.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.TCPConf.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPConf.TCPLingerSec))

	return sb.String()
}

// --------------------------------------------------------------------------
// Sender configuration struct
// --------------------------------------------------------------------------

// SenderConfig is the immutable configuration of one sender.
// Zero values of the tunables are replaced by the defaults in WithDefaults.
type SenderConfig struct {
	// Remote store
	Host     string
	Port     int
	Password string

	// ExpectedDatabases is the minimum number of databases the remote store must be configured with
	ExpectedDatabases int
	// DBName is a label for the local database, only used in logs
	DBName string

	// Queue and pipeline
	QueueCapacity     int
	MaxPendingReplies int
	SendAttempts      int

	// Timing
	ConnectTimeout   time.Duration
	SendTimeout      time.Duration
	RecvTimeout      time.Duration
	ReconnectDelay   time.Duration
	LivenessInterval time.Duration
	PollInterval     time.Duration

	SocketConf SocketConf
	TCPConf    TCPConf
}

// Endpoint returns the address handed to the transport.
// A port <= 0 means Host is used as is (e.g. a unix socket path).
func (c SenderConfig) Endpoint() string {
	if c.Port <= 0 {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// WithDefaults returns a copy of the config with all unset tunables filled in
func (c SenderConfig) WithDefaults() SenderConfig {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.MaxPendingReplies <= 0 {
		c.MaxPendingReplies = DefaultMaxPendingReplies
	}
	if c.SendAttempts <= 0 {
		c.SendAttempts = DefaultSendAttempts
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.RecvTimeout <= 0 {
		c.RecvTimeout = DefaultRecvTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	// a zero liveness interval is valid (probe before every send), only negative values are reset
	if c.LivenessInterval < 0 {
		c.LivenessInterval = DefaultLivenessInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// ClientConfig derives the per-connection transport configuration
func (c SenderConfig) ClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:       c.Endpoint(),
		ConnectTimeout: c.ConnectTimeout,
		SendTimeout:    c.SendTimeout,
		RecvTimeout:    c.RecvTimeout,
		SocketConf:     c.SocketConf,
		TCPConf:        c.TCPConf,
	}
}

// String returns a formatted string representation of the configuration.
// The password is never printed.
func (c *SenderConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	password := "(none)"
	if c.Password != "" {
		password = "********"
	}

	addSection("Target")
	addField("Endpoint", c.Endpoint())
	addField("Password", password)
	addField("Expected Databases", strconv.Itoa(c.ExpectedDatabases))
	addField("Local DB Name", c.DBName)

	addSection("Pipeline")
	addField("Queue Capacity", strconv.Itoa(c.QueueCapacity))
	addField("Max Pending Replies", strconv.Itoa(c.MaxPendingReplies))
	addField("Send Attempts", strconv.Itoa(c.SendAttempts))

	addSection("Timing")
	addField("Connect Timeout", c.ConnectTimeout.String())
	addField("Send Timeout", c.SendTimeout.String())
	addField("Recv Timeout", c.RecvTimeout.String())
	addField("Reconnect Delay", c.ReconnectDelay.String())
	addField("Liveness Interval", c.LivenessInterval.String())
	addField("Poll Interval", c.PollInterval.String())

	return sb.String()
}

// --------------------------------------------------------------------------
// Forward command configuration struct
// --------------------------------------------------------------------------

// ForwardConfig describes one run of the forwarder process
type ForwardConfig struct {
	Sender  SenderConfig
	Senders int

	// Input is a file path, "-" for stdin. Ignored when Kafka brokers are set.
	Input        string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	MetricsEndpoint  string
	ProgressInterval time.Duration
	LogLevel         string
}

// String returns a formatted string representation of the forward configuration
func (c *ForwardConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Forwarder")
	addField("Senders", strconv.Itoa(c.Senders))
	if len(c.KafkaBrokers) > 0 {
		addField("Source", "kafka")
		addField("Kafka Brokers", strings.Join(c.KafkaBrokers, ","))
		addField("Kafka Topic", c.KafkaTopic)
		addField("Kafka Group", c.KafkaGroup)
	} else {
		addField("Source", "lines")
		addField("Input", c.Input)
	}
	addField("Metrics Endpoint", c.MetricsEndpoint)
	addField("Progress Interval", c.ProgressInterval.String())

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	sb.WriteString(c.Sender.String())
	return sb.String()
}
