// Package main is the codecbench CLI: it times serialization and
// deserialization of one fixture across wire formats and compares each
// format to a baseline.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/appnet-org/codecbench/internal/config"
	"github.com/appnet-org/codecbench/internal/report"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/codec"
	"github.com/appnet-org/codecbench/pkg/fixture"
	"github.com/appnet-org/codecbench/pkg/logging"
)

func main() {
	if err := logging.Init(logging.ConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := newRootCmd(codec.DefaultRegistry).Execute(); err != nil {
		logging.Error("codecbench failed", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
}

func newRootCmd(reg *codec.Registry) *cobra.Command {
	root := &cobra.Command{
		Use:   "codecbench",
		Short: "Serialization benchmark across wire formats",
		Long: `codecbench encodes and decodes one synthetic dataset with every selected
format, times both directions and reports each format relative to a baseline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(reg), newFormatsCmd(reg))
	return root
}

func newRunCmd(reg *codec.Registry) *cobra.Command {
	def := config.Default()
	var flagCfg config.Config

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark suite",
		Long: `Run setup, serialization benchmarks, deserialization benchmarks and the
summary in that order. Warmup, iterations and fixture size default to the
CODECBENCH_WARMUP, CODECBENCH_ITERATIONS and CODECBENCH_FIXTURE_SIZE
environment variables when set; flags take precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv(def)
			if err != nil {
				return err
			}
			mergeFlags(cmd, cfg, &flagCfg)
			return runBenchmark(cmd.Context(), cmd.OutOrStdout(), reg, cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&flagCfg.Warmup, "warmup", def.Warmup,
		"Discarded iterations before timing")
	flags.IntVar(&flagCfg.Iterations, "iterations", def.Iterations,
		"Timed iterations per format and operation")
	flags.IntVar(&flagCfg.FixtureSize, "size", def.FixtureSize,
		"Number of records in the fixture")
	flags.StringSliceVar(&flagCfg.Formats, "formats", def.Formats,
		"Ordered formats to compare (see 'codecbench formats')")
	flags.StringVar(&flagCfg.Baseline, "baseline", "",
		"Baseline format (default: first of --formats)")
	flags.BoolVar(&flagCfg.NullRefs, "null-refs", false,
		"Clear three refs on every third record")
	flags.BoolVar(&flagCfg.OmitNulls, "omit-nulls", false,
		"Leave nil refs out of JSON, MessagePack and CBOR payloads")
	flags.Int64Var(&flagCfg.Seed, "seed", 0,
		"Random seed (0 = use current time)")
	flags.StringVar(&flagCfg.SchemaPath, "schema", "",
		"Path to a text-format protobuf descriptor set (default: embedded)")
	flags.BoolVar(&flagCfg.ContinueOnError, "continue-on-error", false,
		"Record failing formats and keep going instead of aborting")
	flags.BoolVar(&flagCfg.JSON, "json", false,
		"Output results as JSON instead of tables")

	return cmd
}

// mergeFlags copies every flag the user set onto cfg.
func mergeFlags(cmd *cobra.Command, cfg, flagCfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("warmup") {
		cfg.Warmup = flagCfg.Warmup
	}
	if flags.Changed("iterations") {
		cfg.Iterations = flagCfg.Iterations
	}
	if flags.Changed("size") {
		cfg.FixtureSize = flagCfg.FixtureSize
	}
	if flags.Changed("formats") {
		cfg.Formats = flagCfg.Formats
		cfg.Baseline = ""
	}
	if flagCfg.Baseline != "" {
		cfg.Baseline = flagCfg.Baseline
	}
	if cfg.Baseline == "" && len(cfg.Formats) > 0 {
		cfg.Baseline = cfg.Formats[0]
	}
	cfg.NullRefs = flagCfg.NullRefs
	cfg.OmitNulls = flagCfg.OmitNulls
	cfg.Seed = flagCfg.Seed
	cfg.SchemaPath = flagCfg.SchemaPath
	cfg.ContinueOnError = flagCfg.ContinueOnError
	cfg.JSON = flagCfg.JSON
}

func runBenchmark(ctx context.Context, w io.Writer, reg *codec.Registry, cfg *config.Config) error {
	if err := cfg.Validate(reg); err != nil {
		return err
	}

	display := func(id string) string {
		if name, ok := reg.Display(id); ok {
			return name
		}
		return id
	}

	formats := make([]bench.Format, 0, len(cfg.Formats))
	for _, id := range cfg.Formats {
		c, err := reg.New(id, codec.Options{SchemaPath: cfg.SchemaPath, OmitNulls: cfg.OmitNulls})
		if err != nil {
			return err
		}
		formats = append(formats, bench.Format{Name: id, Codec: c, Baseline: id == cfg.Baseline})
	}

	var (
		reporter bench.Reporter
		table    *report.Table
		jsonOut  *report.JSON
	)
	if cfg.JSON {
		jsonOut = report.NewJSON(display)
		reporter = jsonOut
	} else {
		table = report.NewTable(w, display)
		reporter = table
	}

	logging.Info("Starting benchmark",
		zap.Int("warmup", cfg.Warmup),
		zap.Int("iterations", cfg.Iterations),
		zap.Int("records", cfg.FixtureSize),
		zap.Strings("formats", cfg.Formats),
		zap.String("baseline", cfg.Baseline),
		zap.Bool("null_refs", cfg.NullRefs),
		zap.Bool("omit_nulls", cfg.OmitNulls))

	suite, err := bench.NewSuite(bench.SuiteConfig{
		Warmup:          cfg.Warmup,
		Iterations:      cfg.Iterations,
		FixtureSize:     cfg.FixtureSize,
		ContinueOnError: cfg.ContinueOnError,
	}, formats, fixture.NewGenerator(fixture.Options{Seed: cfg.Seed, NullRefs: cfg.NullRefs}), reporter)
	if err != nil {
		return err
	}

	if _, err := suite.Run(ctx); err != nil {
		return err
	}
	if jsonOut != nil {
		return jsonOut.Flush(w)
	}
	return table.Err()
}

func newFormatsCmd(reg *codec.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List registered formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := make(map[string]bool, len(codec.DefaultFormats))
			for _, id := range codec.DefaultFormats {
				defaults[id] = true
			}

			w := cmd.OutOrStdout()
			for _, id := range reg.Names() {
				name, _ := reg.Display(id)
				marker := ""
				if defaults[id] {
					marker = " (default)"
				}
				if _, err := fmt.Fprintf(w, "%-12s %s%s\n", id, name, marker); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
