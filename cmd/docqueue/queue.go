package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eargollo/docqueue/internal/config"
	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/events"
	"github.com/eargollo/docqueue/internal/queue"
	"github.com/eargollo/docqueue/internal/scan"
)

var queueFlags struct {
	queueType      string
	queueName      string
	redisAddress   string
	include        string
	exclude        string
	followSymlinks bool
	includeHidden  bool
	includeOSFiles bool
	maxDepth       int
	idMethod       string
	digestMethod   string
	charset        string
	progress       bool
}

var queueCmd = &cobra.Command{
	Use:   "queue [paths...]",
	Short: "Scan paths and queue every eligible file",
	Long: `Scan each path (the current directory when none is given) and put one
document per eligible file on the configured queue. Each path is scanned as an
independent unit: a path that fails does not stop the others. The command
prints the number of documents queued and exits non-zero if any path failed.`,
	RunE: runQueue,
}

func init() {
	f := queueCmd.Flags()
	f.StringVar(&queueFlags.queueType, "queue-type", "", "queue backend: memory or redis")
	f.StringVar(&queueFlags.queueName, "queue-name", "", "queue name (default "+queue.DefaultName+")")
	f.StringVar(&queueFlags.redisAddress, "redis-address", "", "Redis address host:port")
	f.StringVar(&queueFlags.include, "include-pattern", "", "only queue files matching this glob")
	f.StringVar(&queueFlags.exclude, "exclude-pattern", "", "skip files and directories matching this glob")
	f.BoolVar(&queueFlags.followSymlinks, "follow-symlinks", false, "follow symbolic links")
	f.BoolVar(&queueFlags.includeHidden, "include-hidden-files", false, "include dotfiles and dot-directories")
	f.BoolVar(&queueFlags.includeOSFiles, "include-os-files", false, "include OS-generated files such as .DS_Store and Thumbs.db")
	f.IntVar(&queueFlags.maxDepth, "max-depth", 0, "maximum directory depth, 0 for unbounded")
	f.StringVar(&queueFlags.idMethod, "id-method", "", "document id method: path or digest")
	f.StringVar(&queueFlags.digestMethod, "id-digest-method", "", "digest algorithm for the digest id method")
	f.StringVar(&queueFlags.charset, "charset", "", "charset declared on queued documents")
	f.BoolVar(&queueFlags.progress, "progress", false, "show a progress bar")
}

// applyQueueFlags copies explicitly set flags over the file configuration.
func applyQueueFlags(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed
	set := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	set("queue-type", &c.Queue.Type, queueFlags.queueType)
	set("queue-name", &c.Queue.Name, queueFlags.queueName)
	set("redis-address", &c.Queue.Address, queueFlags.redisAddress)
	set("include-pattern", &c.Scan.IncludePattern, queueFlags.include)
	set("exclude-pattern", &c.Scan.ExcludePattern, queueFlags.exclude)
	set("id-method", &c.Identity.Method, queueFlags.idMethod)
	set("id-digest-method", &c.Identity.DigestMethod, queueFlags.digestMethod)
	set("charset", &c.Identity.Charset, queueFlags.charset)
	if changed("follow-symlinks") {
		c.Scan.FollowSymlinks = queueFlags.followSymlinks
	}
	if changed("include-hidden-files") {
		c.Scan.IncludeHiddenFiles = queueFlags.includeHidden
	}
	if changed("include-os-files") {
		c.Scan.IncludeOSFiles = queueFlags.includeOSFiles
	}
	if changed("max-depth") {
		c.Scan.MaxDepth = queueFlags.maxDepth
	}
}

func runQueue(cmd *cobra.Command, args []string) error {
	applyQueueFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.DocumentOptions()
	if err != nil {
		return err
	}
	factory, err := document.NewFactory(opts)
	if err != nil {
		return err
	}

	q, err := queue.New(ctx, cfg.QueueConfig())
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer q.Close()

	monitor := events.NewMonitor("scan", events.LogListener{})
	if queueFlags.progress {
		bar := events.NewConsoleListener("Queueing")
		bar.Writer = os.Stderr
		defer bar.Stop()
		monitor.AddListener(bar)
	}

	scanner, err := scan.New(factory, q, monitor, cfg.ScanOptions())
	if err != nil {
		return err
	}

	slog.Info("queue: scanning", "paths", paths, "queue", q.Name(), "backend", cfg.Queue.Type)
	n, err := scan.Run(ctx, scanner, paths)
	fmt.Fprintf(cmd.OutOrStdout(), "queued %d documents on %s\n", n, q.Name())
	return err
}
