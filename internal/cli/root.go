// Package cli contains the Cobra commands behind tabqctl.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/eleven-am/tabq"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	dir        string
	table      string
	codec      string
	commitMode string
	logLevel   string

	leaseDuration time.Duration
}

// NewRoot constructs the tabqctl root command and registers every
// subcommand.
func NewRoot() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "tabqctl",
		Short:         "Inspect and operate tabq queues",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `tabqctl opens a tabq data directory and runs one queue operation.

Items are handled as JSON documents. Arguments that are not valid JSON are
stored as JSON strings.`,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("TABQ_CONFIG"), "YAML config file")
	flags.StringVar(&opts.dir, "dir", "", "Data directory (overrides config)")
	flags.StringVar(&opts.table, "table", "", "Table name (overrides config)")
	flags.StringVar(&opts.codec, "codec", "", "Payload codec: json|msgpack (overrides config)")
	flags.StringVar(&opts.commitMode, "commit-mode", "", "Commit mode: lazy|sync (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")

	root.AddCommand(
		newCountCommand(opts),
		newEnqueueCommand(opts),
		newPeekCommand(opts),
		newDequeueCommand(opts),
		newLeaseCommand(opts),
		newCompleteCommand(opts),
		newReclaimCommand(opts),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRoot()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func (o *options) config(stderr io.Writer) (tabq.Config, error) {
	var cfg tabq.Config
	if o.configPath != "" {
		loaded, err := tabq.LoadConfigFile(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}

	if o.dir != "" {
		cfg.Dir = o.dir
		cfg.InMemory = false
	}
	if o.table != "" {
		cfg.Table = o.table
	}
	if o.codec != "" {
		cfg.Codec = o.codec
	}
	if o.commitMode != "" {
		if err := cfg.CommitMode.UnmarshalText([]byte(o.commitMode)); err != nil {
			return cfg, err
		}
	}

	if o.leaseDuration > 0 {
		cfg.LeaseDuration = o.leaseDuration
	}

	cfg.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLevel(o.logLevel)}))
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
