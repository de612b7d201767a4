package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachewarm/checkpoint"
	"github.com/sarchlab/cachewarm/datarecording"
	"github.com/sarchlab/cachewarm/mem/hierarchy"
	"github.com/sarchlab/cachewarm/mem/trace"
	"github.com/sarchlab/cachewarm/monitoring"
)

var replayCmd = &cobra.Command{
	Use:   "replay TRACE...",
	Short: "Replay traces and render a checkpoint.",
	Long: "`replay` feeds the traces, in order, through one cache hierarchy " +
		"per core and writes the checkpoint of the final state.",
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		params, err := paramsFromFlags(cmd.Flags())
		if err != nil {
			atexit.Fatalf("Invalid checkpoint parameters:\n%v", err)
		}

		machine := buildMachine(cmd)
		replayer := trace.NewReplayer(machine)

		var recorder datarecording.DataRecorder

		dbName, _ := cmd.Flags().GetString("db")
		if dbName != "" {
			recorder = datarecording.New(dbName)
		}

		if traceAccesses, _ := cmd.Flags().GetBool("trace-accesses"); traceAccesses {
			if recorder == nil {
				atexit.Fatalf("Error: --trace-accesses requires --db")
			}

			replayer.AcceptTracer(trace.NewDBTracer(recorder))
		}

		if logAccesses, _ := cmd.Flags().GetBool("log-accesses"); logAccesses {
			replayer.AcceptTracer(trace.NewLogTracer(log.New(os.Stderr, "", 0)))
		}

		stopMonitor := startMonitor(cmd, machine, replayer, args)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		start := time.Now()

		err = replayFiles(ctx, replayer, args, recorder)
		if err != nil {
			atexit.Fatalf("Error: %v", err)
		}

		stopMonitor()

		fmt.Fprintf(os.Stderr, "Replayed %d events in %s\n",
			replayer.Replayed(), time.Since(start).Round(time.Millisecond))

		cp := machine.Checkpoint(params)

		output, _ := cmd.Flags().GetString("output")
		err = writeCheckpoint(cp, output)
		if err != nil {
			atexit.Fatalf("Error writing checkpoint: %v", err)
		}

		if recorder != nil {
			cp.Record(recorder)

			err = recorder.Close()
			if err != nil {
				atexit.Fatalf("Error closing database: %v", err)
			}
		}

		printSummary(cp, machine.Stats())

		atexit.Exit(0)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	flags := replayCmd.Flags()
	flags.Int("cores", 1, "Number of cores")
	flags.Int("log2-line-size", 6, "Log2 of the cache line size in bytes")
	flags.Int("private-sets", 2048, "Number of sets of each private cache")
	flags.Int("private-ways", 16, "Associativity of each private cache")
	flags.Int("shadow-sets", 4096, "Number of sets of each shared shadow cache")
	flags.Int("shadow-ways", 16, "Associativity of each shared shadow cache")
	flags.StringP("output", "o", "checkpoint.json",
		"File to write the checkpoint into, - for stdout")
	flags.String("db", "", "Also record the checkpoint into this SQLite database")
	flags.Bool("trace-accesses", false,
		"Record every replayed access into the database")
	flags.Bool("log-accesses", false, "Print every replayed access")
	flags.Bool("monitor", false, "Serve the replay progress over HTTP")
	flags.Int("monitor-port", 0, "Port of the monitoring server")
	flags.Bool("open", false, "Open the monitoring page in a browser")
	addParamsFlags(flags)
}

func buildMachine(cmd *cobra.Command) *hierarchy.Machine {
	flags := cmd.Flags()
	numCores, _ := flags.GetInt("cores")
	log2LineSize, _ := flags.GetInt("log2-line-size")
	privateSets, _ := flags.GetInt("private-sets")
	privateWays, _ := flags.GetInt("private-ways")
	shadowSets, _ := flags.GetInt("shadow-sets")
	shadowWays, _ := flags.GetInt("shadow-ways")

	if numCores <= 0 || numCores > trace.MaxCores {
		atexit.Fatalf("Error: core count must be between 1 and %d", trace.MaxCores)
	}

	return hierarchy.MakeBuilder().
		WithNumCores(numCores).
		WithLog2CacheLineSize(log2LineSize).
		WithPrivateCache(privateSets, privateWays).
		WithSharedCache(shadowSets, shadowWays).
		WithLogger(log.New(os.Stderr, "", log.LstdFlags)).
		Build()
}

func replayFile(
	ctx context.Context,
	replayer *trace.Replayer,
	path string,
) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return replayer.Replay(ctx, trace.NewReader(f))
}

// replayFiles replays the traces in order. When a trace fails, the accesses
// traced so far are flushed into the recorder before the error is returned.
func replayFiles(
	ctx context.Context,
	replayer *trace.Replayer,
	paths []string,
	recorder datarecording.DataRecorder,
) error {
	for _, path := range paths {
		err := replayFile(ctx, replayer, path)
		if err == nil {
			continue
		}

		if recorder != nil {
			recorder.Flush()
		}

		return fmt.Errorf("replaying %s: %w", path, err)
	}

	return nil
}

func countEvents(paths []string) uint64 {
	var total uint64

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		total += uint64(info.Size()) / trace.RecordSize
	}

	return total
}

// startMonitor starts the monitoring server if requested and returns a
// function that removes the progress bar of the replay.
func startMonitor(
	cmd *cobra.Command,
	machine *hierarchy.Machine,
	replayer *trace.Replayer,
	paths []string,
) func() {
	enabled, _ := cmd.Flags().GetBool("monitor")
	if !enabled {
		return func() {}
	}

	port, _ := cmd.Flags().GetInt("monitor-port")
	open, _ := cmd.Flags().GetBool("open")

	monitor := monitoring.NewMonitor().
		WithPortNumber(port).
		WithBrowser(open)
	monitor.RegisterStatsSource(machine)
	monitor.StartServer()

	bar := monitor.CreateProgressBar("Replay", countEvents(paths))
	replayer.WithProgress(bar)

	return func() {
		monitor.CompleteProgressBar(bar)
	}
}

func writeCheckpoint(cp *checkpoint.Checkpoint, output string) error {
	if output == "-" {
		return cp.WriteJSON(os.Stdout)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}

	err = cp.WriteJSON(f)
	if err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func printSummary(cp *checkpoint.Checkpoint, stats []hierarchy.Stats) {
	s := cp.Summarize()

	fmt.Fprintf(os.Stderr, "Checkpoint %s\n", cp.ID)
	fmt.Fprintf(os.Stderr, "  cores:             %d\n", s.Cores)
	fmt.Fprintf(os.Stderr, "  L1I lines:         %d\n", s.L1ILines)
	fmt.Fprintf(os.Stderr, "  L1D lines:         %d\n", s.L1DLines)
	fmt.Fprintf(os.Stderr, "  L2 lines:          %d\n", s.L2Lines)
	fmt.Fprintf(os.Stderr, "  directory entries: %d\n", s.DirectoryEntries)
	fmt.Fprintf(os.Stderr, "  shared lines:      %d\n", s.SharedLines)

	fmt.Fprintf(os.Stderr, "  digest:            %016x\n", cp.Digest())

	for core, st := range stats {
		fmt.Fprintf(os.Stderr,
			"  core %d: %d accesses, %.2f%% hits, %d shadow hits, %d warmed sets\n",
			core, st.Accesses, 100*st.HitRate(), st.ShadowHits, st.WarmedSets)
	}
}
