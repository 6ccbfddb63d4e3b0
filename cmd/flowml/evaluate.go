package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/flowml/config"
	"github.com/rushteam/flowml/evaluate"
	"github.com/rushteam/flowml/metrics"
	"github.com/rushteam/flowml/pkg/dsl"
	"github.com/rushteam/flowml/stream"
)

type evaluateOptions struct {
	data         string
	target       string
	targetType   string
	pipeline     string
	metrics      []string
	moment       string
	momentLayout string
	delay        float64
	delayFeature string
	printEvery   int
	drop         []string
	filter       string
	shuffle      int
	fraction     float64
	take         int
	seed         uint64
}

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Progressively validate a pipeline on a CSV stream",
		Long: `Reads the CSV file row by row. For every row the pipeline first predicts,
then learns once the label is revealed (immediately, or after --delay / --delay-feature).
Prints the final metric values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, root.logger, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.data, "data", "d", "", "CSV file (.csv or .csv.gz)")
	f.StringVarP(&opts.target, "target", "t", "", "target column")
	f.StringVar(&opts.targetType, "target-type", "float", "target type: float, int, bool or string")
	f.StringVarP(&opts.pipeline, "pipeline", "p", "", "pipeline config (.yaml, .json or .toml)")
	f.StringSliceVarP(&opts.metrics, "metric", "m", []string{"mae"}, "metrics, the first one is the primary metric")
	f.StringVar(&opts.moment, "moment", "", "column holding the time of each row (default: row index)")
	f.StringVar(&opts.momentLayout, "moment-layout", "", "Go time layout used to parse --moment, e.g. 2006-01-02 15:04:05")
	f.Float64Var(&opts.delay, "delay", 0, "constant label delay, in seconds (or rows without --moment)")
	f.StringVar(&opts.delayFeature, "delay-feature", "", "column holding the label delay in seconds")
	f.IntVar(&opts.printEvery, "print-every", 0, "log the metric every n revealed labels")
	f.StringSliceVar(&opts.drop, "drop", nil, "columns to ignore")
	f.StringVar(&opts.filter, "filter", "", "CEL predicate over x and y, e.g. 'x.distance > 0.0'")
	f.IntVar(&opts.shuffle, "shuffle", 0, "shuffle buffer size (0 keeps file order)")
	f.Float64Var(&opts.fraction, "fraction", 1, "fraction of rows to sample")
	f.IntVar(&opts.take, "take", 0, "stop after n rows (0 reads everything)")
	f.Uint64Var(&opts.seed, "seed", 0, "seed for --shuffle and --fraction")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

func runEvaluate(cmd *cobra.Command, logger *zap.Logger, opts *evaluateOptions) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := config.Load(opts.pipeline)
	if err != nil {
		return fmt.Errorf("load pipeline: %w", err)
	}
	p, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	metric, err := buildMetric(opts.metrics)
	if err != nil {
		return err
	}
	s, closeStream, err := openStream(opts)
	if err != nil {
		return err
	}
	defer closeStream()

	evalOpts := []evaluate.Option{
		evaluate.WithPrintEvery(opts.printEvery),
		evaluate.WithLogger(logger),
	}
	if opts.moment != "" {
		evalOpts = append(evalOpts, evaluate.WithMoment(stream.ByFeature(opts.moment)))
	}
	switch {
	case opts.delayFeature != "":
		evalOpts = append(evalOpts, evaluate.WithDelay(stream.DelayFeature(opts.delayFeature)))
	case opts.delay > 0:
		evalOpts = append(evalOpts, evaluate.WithDelay(stream.ConstantDelay(opts.delay)))
	}

	logger.Info("evaluating",
		zap.String("pipeline", cfg.Pipeline.Name),
		zap.String("steps", p.String()),
		zap.String("data", opts.data))
	res, err := evaluate.ProgressiveValScore(cmd.Context(), s, p, metric, evalOpts...)
	if err != nil {
		return err
	}
	logger.Info("done",
		zap.Int("n", res.N),
		zap.String("metric", res.Metric.String()),
		zap.Duration("elapsed", res.Elapsed))
	fmt.Fprintln(cmd.OutOrStdout(), res.Metric.String())
	return nil
}

func buildMetric(names []string) (metrics.Metric, error) {
	ms := make(metrics.Metrics, 0, len(names))
	for _, name := range names {
		m, err := metrics.New(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	if len(ms) == 1 {
		return ms[0], nil
	}
	return ms, nil
}

func openStream(opts *evaluateOptions) (stream.Stream, func(), error) {
	csvOpts := []stream.CSVOption{
		stream.WithTarget(opts.target),
		stream.WithInferTypes(),
		stream.WithDrop(opts.drop...),
	}
	switch opts.targetType {
	case "float":
		csvOpts = append(csvOpts, stream.WithConverters(map[string]stream.Converter{opts.target: stream.ParseFloat}))
	case "int":
		csvOpts = append(csvOpts, stream.WithConverters(map[string]stream.Converter{opts.target: stream.ParseInt}))
	case "bool":
		csvOpts = append(csvOpts, stream.WithConverters(map[string]stream.Converter{opts.target: stream.ParseBool}))
	case "string":
		csvOpts = append(csvOpts, stream.WithConverters(map[string]stream.Converter{
			opts.target: func(s string) (any, error) { return s, nil },
		}))
	default:
		return nil, nil, fmt.Errorf("unknown --target-type %q (supported: float, int, bool, string)", opts.targetType)
	}
	if opts.moment != "" && opts.momentLayout != "" {
		csvOpts = append(csvOpts, stream.WithParseDates(map[string]string{opts.moment: opts.momentLayout}))
	}
	if opts.fraction < 1 {
		csvOpts = append(csvOpts, stream.WithFraction(opts.fraction, opts.seed))
	}

	csvStream, err := stream.OpenCSV(opts.data, csvOpts...)
	if err != nil {
		return nil, nil, err
	}
	closeStream := func() { _ = csvStream.Close() }

	var s stream.Stream = csvStream
	if opts.filter != "" {
		pred, err := dsl.Compile(opts.filter)
		if err != nil {
			closeStream()
			return nil, nil, fmt.Errorf("compile --filter: %w", err)
		}
		s = stream.Filter(s, pred)
	}
	if opts.shuffle > 0 {
		s = stream.Shuffle(s, opts.shuffle, opts.seed)
	}
	if opts.take > 0 {
		s = stream.Take(s, opts.take)
	}
	return s, closeStream, nil
}
