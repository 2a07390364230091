package forward

import (
	"context"
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/rfwd/cmd/util"
	"github.com/ValentinKolb/rfwd/lib/queue"
	"github.com/ValentinKolb/rfwd/lib/sender"
	"github.com/ValentinKolb/rfwd/lib/source"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var log = logger.GetLogger("cmd")

var (
	forwardCmdConfig = &common.ForwardConfig{}
	ForwardCmd       = &cobra.Command{
		Use:   "forward",
		Short: "Forward commands to a remote store",
		Long: `Read commands from a file, stdin or a kafka topic and forward them to a remote Redis compatible store.

Every input line has the form "<db> <COMMAND> [args...]", e.g. "db3 SET user:1 alice".
The configuration can be set via command line flags or environment variables. The format of the environment variables is RFWD_<flag> (e.g. RFWD_RECONNECT_DELAY=5s)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupTargetFlags(ForwardCmd)

	key := "senders"
	ForwardCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Number of parallel senders. Commands with the same key always use the same sender"))

	key = "input"
	ForwardCmd.PersistentFlags().String(key, "-", cmdUtil.WrapString("File to read commands from, '-' for stdin. Ignored if kafka brokers are set"))

	key = "kafka-brokers"
	ForwardCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of kafka brokers. If set, commands are consumed from --kafka-topic"))

	key = "kafka-topic"
	ForwardCmd.PersistentFlags().String(key, "rfwd-commands", cmdUtil.WrapString("Kafka topic to consume commands from"))

	key = "kafka-group"
	ForwardCmd.PersistentFlags().String(key, "rfwd", cmdUtil.WrapString("Kafka consumer group"))

	key = "metrics-endpoint"
	ForwardCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address to serve prometheus metrics on (e.g. :9121), empty to disable"))

	key = "progress-interval"
	ForwardCmd.PersistentFlags().Duration(key, 10*time.Second, cmdUtil.WrapString("How often progress is logged, 0 to disable"))
}

// processConfig reads the flags and environment variables into the forward configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	forwardCmdConfig.Sender = cmdUtil.GetSenderConfig()
	forwardCmdConfig.Senders = viper.GetInt("senders")
	forwardCmdConfig.Input = viper.GetString("input")
	forwardCmdConfig.KafkaTopic = viper.GetString("kafka-topic")
	forwardCmdConfig.KafkaGroup = viper.GetString("kafka-group")
	forwardCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	forwardCmdConfig.ProgressInterval = viper.GetDuration("progress-interval")
	forwardCmdConfig.LogLevel = viper.GetString("log-level")

	forwardCmdConfig.KafkaBrokers = nil
	if brokers := viper.GetString("kafka-brokers"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			forwardCmdConfig.KafkaBrokers = append(forwardCmdConfig.KafkaBrokers, strings.TrimSpace(broker))
		}
	}

	if forwardCmdConfig.Senders < 1 {
		return fmt.Errorf("at least one sender is required, got %d", forwardCmdConfig.Senders)
	}
	return nil
}

// run wires source, sender pool and metrics together and blocks until the input is
// exhausted, a signal arrives or a sender fails fatally. The first SIGINT/SIGTERM stops
// reading and sends what is queued, a second one aborts.
func run(_ *cobra.Command, _ []string) error {
	factory, err := cmdUtil.GetClientFactory()
	if err != nil {
		return err
	}

	src, err := openSource(forwardCmdConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warningf("Failed to close %s: %v", src.GetName(), err)
		}
	}()

	log.Infof("Starting forwarder with config:\n%s", forwardCmdConfig)

	// cancelling ctx aborts the senders, a graceful stop goes through pool.Stop
	ctx, abort := context.WithCancel(context.Background())
	defer abort()

	pool := sender.NewPool(forwardCmdConfig.Senders, forwardCmdConfig.Sender, factory)
	pool.Start(ctx)

	if forwardCmdConfig.MetricsEndpoint != "" {
		server := serveMetrics(forwardCmdConfig.MetricsEndpoint)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if forwardCmdConfig.ProgressInterval > 0 {
		go reportProgress(ctx, pool, forwardCmdConfig.ProgressInterval)
	}

	// the source stops as soon as the pool is gone
	srcCtx, cancelSrc := context.WithCancel(ctx)
	defer cancelSrc()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go handleSignals(signals, pool.Done(), func() {
		cancelSrc()
		pool.Stop()
	}, abort)
	go func() {
		select {
		case <-pool.Done():
			cancelSrc()
		case <-srcCtx.Done():
		}
	}()

	srcErr := src.Run(srcCtx, pool)
	if srcErr != nil {
		log.Errorf("%s failed: %v", src.GetName(), srcErr)
	}

	pool.Stop()
	poolErr := pool.Wait()

	snap := pool.Snapshot()
	log.Infof("Forwarded %d commands (%s)", pool.ElementsProcessed(), snap)
	log.Infof("Sender balance: %s", pool.Balance())

	if poolErr != nil {
		return poolErr
	}
	// a closed queue means the pool was stopped, which is not an error of the source
	if srcErr != nil && !errors.Is(srcErr, queue.ErrClosed) {
		return srcErr
	}
	if snap.Dropped > 0 {
		return fmt.Errorf("%d commands could not be forwarded", snap.Dropped)
	}
	return nil
}

func openSource(conf *common.ForwardConfig) (source.ISource, error) {
	if len(conf.KafkaBrokers) > 0 {
		if conf.KafkaTopic == "" {
			return nil, fmt.Errorf("a kafka topic is required")
		}
		return source.NewKafkaSource(conf.KafkaBrokers, conf.KafkaTopic, conf.KafkaGroup), nil
	}

	if conf.Input == "" || conf.Input == "-" {
		return source.NewLineSource("stdin", os.Stdin), nil
	}
	f, err := os.Open(conf.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return source.NewLineSource(conf.Input, f), nil
}

// serveMetrics exposes all registered series in the prometheus text format
func serveMetrics(endpoint string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	server := &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("Serving metrics on %s/metrics", endpoint)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics endpoint failed: %v", err)
		}
	}()
	return server
}

func reportProgress(ctx context.Context, pool *sender.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pool.Done():
			return
		case <-ticker.C:
			log.Infof("Progress: %s", pool.Snapshot())
		}
	}
}
