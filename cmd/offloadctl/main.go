package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"task-offload/internal/adapter"
	"task-offload/internal/config"
	"task-offload/internal/dispatcher"
	"task-offload/internal/logging"
	"task-offload/pkg/processor/builtin"
)

// cli holds global flags and the lazily built in-process dispatcher.
type cli struct {
	out        io.Writer
	in         io.Reader
	outputJSON bool
	timeout    time.Duration

	cfg     config.Dispatcher
	manager *dispatcher.Manager
	logs    io.Closer
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}

	rootCmd := &cobra.Command{
		Use:   "offloadctl",
		Short: "Run offloaded text, collection and geometry operations",
		Long: "offloadctl runs processor operations through the task dispatcher in-process, " +
			"falling back to local computation when a context is unavailable.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.manager != nil {
				c.manager.Terminate()
			}
			if c.logs != nil {
				c.logs.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&c.outputJSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().DurationVarP(&c.timeout, "timeout", "t", 30*time.Second, "Overall operation timeout")

	rootCmd.AddCommand(c.splitCmd())
	rootCmd.AddCommand(c.staggerCmd())
	rootCmd.AddCommand(c.paginateCmd())
	rootCmd.AddCommand(c.categoriesCmd())
	rootCmd.AddCommand(c.distanceCmd())
	rootCmd.AddCommand(c.framesCmd())
	rootCmd.AddCommand(c.statusCmd())

	return rootCmd
}

func (c *cli) setup() error {
	cfg, err := config.LoadDispatcher()
	if err != nil {
		return err
	}
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	c.logs = logging.Setup(cfg.Log)

	c.cfg = cfg
	c.manager = dispatcher.New(dispatcher.ConfigFrom(cfg), dispatcher.DefaultLauncher(builtin.NewRegistry()))
	return nil
}

// adapterOptions returns auto-initializing adapter options whose entry
// point follows PROCESSOR_BINARY.
func (c *cli) adapterOptions(key string) (adapter.Options, error) {
	entryPoint, err := c.cfg.EntryPointFor(key)
	if err != nil {
		return adapter.Options{}, err
	}
	return adapter.Options{AutoInitialize: true, EntryPoint: entryPoint}, nil
}

func (c *cli) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// print writes v as indented JSON with --json, otherwise calls human.
func (c *cli) print(v any, human func(w io.Writer)) error {
	if c.outputJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(c.out)
	return nil
}

// readRecords reads a JSON array of records from path, or stdin for "-" or "".
func (c *cli) readRecords(path string) ([]json.RawMessage, error) {
	var r io.Reader = c.in
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var records []json.RawMessage
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return records, nil
}
