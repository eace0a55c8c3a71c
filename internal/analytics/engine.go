package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lorawan-pipeline/internal/config"
	"lorawan-pipeline/internal/model"
)

// Metric names, one live analytics document each.
const (
	MetricTopDevices   = "top_active_devices"
	MetricWeakSignal   = "weak_signal_devices"
	MetricGatewayStats = "gateway_environment_stats"
	MetricDuplicates   = "duplicate_devices"
	MetricHighTemp     = "high_temperature_records"
)

// RecordSource supplies the committed record set.
type RecordSource interface {
	FetchRecords(ctx context.Context, since time.Time) ([]model.UplinkRecord, error)
}

// ResultSink persists one result document per metric, replace-on-write.
type ResultSink interface {
	SaveResult(ctx context.Context, result model.AnalyticsResult) error
}

// Module is one aggregation over the committed record set. Compute must be
// a pure function of its inputs: fixed records in, byte-identical result
// out, every time.
type Module interface {
	Name() string
	Compute(records []model.UplinkRecord, computedAt time.Time) (model.AnalyticsResult, error)
}

// Exporter is an optional side output a module may produce after its result
// document is saved (e.g. a JSON export file). Export failures are logged,
// never fatal.
type Exporter interface {
	Export(result model.AnalyticsResult) error
}

// Engine runs the analytics modules over the committed record set with a
// bounded worker pool. Modules are independent: one failing does not stop
// its siblings, and every outcome is reported.
type Engine struct {
	source  RecordSource
	sink    ResultSink
	modules []Module
	workers int
	window  time.Duration
	log     zerolog.Logger
}

// NewEngine builds the five standard modules from configuration.
func NewEngine(cfg config.AnalyticsConfig, source RecordSource, sink ResultSink, log zerolog.Logger) *Engine {
	return &Engine{
		source: source,
		sink:   sink,
		modules: []Module{
			&TopActiveDevices{Limit: cfg.TopDevices},
			&WeakSignalDevices{RSSIThreshold: cfg.WeakRSSI, SNRThreshold: cfg.WeakSNR},
			&GatewayEnvironmentStats{},
			&DuplicateDetection{},
			&HighTemperatureRecords{
				Threshold:      cfg.HighTemperature,
				IncludeRecords: cfg.IncludeHighTemps,
				ExportPath:     cfg.HighTempExport,
			},
		},
		workers: cfg.Workers,
		window:  cfg.Window,
		log:     log.With().Str("component", "analytics").Logger(),
	}
}

// Run computes every module once and writes its result document. The
// returned outcomes are ordered like the modules so summaries are stable.
func (e *Engine) Run(ctx context.Context) []model.ModuleOutcome {
	outcomes := make([]model.ModuleOutcome, len(e.modules))
	for i, mod := range e.modules {
		outcomes[i] = model.ModuleOutcome{Module: mod.Name()}
	}

	var since time.Time
	computedAt := time.Now().UTC()
	if e.window > 0 {
		since = computedAt.Add(-e.window)
	}

	records, err := e.source.FetchRecords(ctx, since)
	if err != nil {
		e.log.Error().Err(err).Msg("could not fetch committed records")
		for i := range outcomes {
			outcomes[i].Error = err.Error()
		}
		return outcomes
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, mod := range e.modules {
		i, mod := i, mod
		g.Go(func() error {
			outcomes[i] = e.runModule(ctx, mod, records, computedAt)
			return nil // module failures are isolated, never cancel siblings
		})
	}
	_ = g.Wait()

	return outcomes
}

func (e *Engine) runModule(ctx context.Context, mod Module, records []model.UplinkRecord, computedAt time.Time) model.ModuleOutcome {
	outcome := model.ModuleOutcome{Module: mod.Name()}

	result, err := mod.Compute(records, computedAt)
	if err != nil {
		e.log.Error().Err(err).Str("module", mod.Name()).Msg("module failed")
		outcome.Error = err.Error()
		return outcome
	}

	if err := e.sink.SaveResult(ctx, result); err != nil {
		e.log.Error().Err(err).Str("module", mod.Name()).Msg("could not save result")
		outcome.Error = err.Error()
		return outcome
	}

	if ex, ok := mod.(Exporter); ok {
		if err := ex.Export(result); err != nil {
			e.log.Warn().Err(err).Str("module", mod.Name()).Msg("export failed")
		}
	}

	outcome.Succeeded = true
	outcome.ResultCount = result.ResultCount
	e.log.Info().Str("module", mod.Name()).Int("results", result.ResultCount).Msg("module completed")
	return outcome
}
