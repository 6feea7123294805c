package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"clamservices/internal/clamdata"
	"clamservices/internal/config"
	"clamservices/internal/diagnostics"
	"clamservices/internal/domain"
	"clamservices/internal/history"
	"clamservices/internal/jobs"
	"clamservices/internal/logging"
	"clamservices/internal/pipeline"
	"clamservices/internal/status"
)

// ErrInvalidJob wraps failures to read the mediator's job descriptor.
var ErrInvalidJob = errors.New("invalid job descriptor")

// App wires configuration, stage tracking, the pipeline and run history for
// one service invocation.
type App struct {
	Config   config.Config
	Store    config.Store
	Jobs     *jobs.Manager
	Status   *status.Channel
	Pipeline pipelineRunner
	History  runRecorder
	checker  serviceChecker
}

// pipelineRunner isolates the tool pipeline behind an interface.
type pipelineRunner interface {
	RunAlpino(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	RunUcto(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	RunSpacy(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// runRecorder persists run outcomes.
type runRecorder interface {
	Begin(ctx context.Context, id, service, project string) error
	Finish(ctx context.Context, id, status, message string, failures []history.UnitFailure) error
}

type serviceChecker interface {
	RunJob(service domain.Service, cfg config.Config, job domain.JobDescriptor) domain.DiagnosticReport
}

// Options configures New.
type Options struct {
	ConfigPath string
	// StatusFile receives progress lines; empty keeps them in memory.
	StatusFile string
}

// New loads configuration and builds the application. The history database
// is opened only when one is configured.
func New(ctx context.Context, opts Options) (*App, error) {
	store := config.NewYAMLStore(opts.ConfigPath)
	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	channel := status.NewChannel(opts.StatusFile, cfg.StatusHistory)
	app := &App{
		Config:   cfg,
		Store:    store,
		Jobs:     jobs.NewManager(),
		Status:   channel,
		Pipeline: pipeline.NewPipeline(cfg, channel),
		checker:  diagnostics.NewChecker(),
	}

	if cfg.HistoryDB != "" {
		db, err := history.Open(ctx, cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		app.History = db
	}
	return app, nil
}

// Close releases the history database, if any.
func (a *App) Close() error {
	if c, ok := a.History.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Check runs the configuration checks for service.
func (a *App) Check(service domain.Service, outputDir string) domain.DiagnosticReport {
	return a.checker.RunJob(service, a.Config, domain.JobDescriptor{OutputDir: outputDir})
}

// RunService executes service for the job described by dataFile. Deployment
// problems are reported as *diagnostics.ConfigurationError before the first
// status line is written; tool failures come back as *pipeline.PipelineError.
func (a *App) RunService(ctx context.Context, service domain.Service, dataFile, outputDir string) (pipeline.Result, error) {
	job, err := clamdata.ReadFile(dataFile, "", outputDir)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if err := diagnostics.Verify(a.checker.RunJob(service, a.Config, job)); err != nil {
		return pipeline.Result{}, err
	}

	runID := history.NewRunID()
	a.recordBegin(ctx, runID, service, job.Project)
	a.writeStatus("Starting...", 0)

	req := pipeline.Request{
		RunID:   runID,
		Job:     job,
		OnStage: a.onStage(runID),
		OnLog: func(log pipeline.CommandLog) {
			logging.Logf("%s: %s %v exit=%d", runID, log.Command, log.Args, log.ExitCode)
		},
	}

	var result pipeline.Result
	switch service {
	case domain.ServiceAlpino:
		result, err = a.Pipeline.RunAlpino(ctx, req)
	case domain.ServiceUcto:
		result, err = a.Pipeline.RunUcto(ctx, req)
	case domain.ServiceSpacy:
		req.SpacyModel = ResolveSpacyModel(job.Parameters.String("model"), SpacyModels(a.Config.SpacyModelsDir))
		result, err = a.Pipeline.RunSpacy(ctx, req)
	default:
		err = fmt.Errorf("unknown service %q", service)
	}

	a.recordFinish(ctx, runID, result, err)
	return result, err
}

// onStage maps pipeline stage callbacks onto the stage tracker.
func (a *App) onStage(runID string) func(string, domain.JobStatus) {
	return func(input string, stage domain.JobStatus) {
		var err error
		switch stage {
		case domain.JobStatusPreprocessing:
			err = a.Jobs.Start(runID, input)
		case domain.JobStatusFailed:
			a.Jobs.Fail()
		default:
			err = a.Jobs.Transition(stage)
		}
		if err != nil {
			logging.Logf("%s: stage %s for %s: %v", runID, stage, input, err)
		}
	}
}

func (a *App) writeStatus(message string, percent int) {
	if err := a.Status.Write(message, percent); err != nil {
		logging.Logf("status: %v", err)
	}
}

func (a *App) recordBegin(ctx context.Context, runID string, service domain.Service, project string) {
	if a.History == nil {
		return
	}
	if err := a.History.Begin(ctx, runID, string(service), project); err != nil {
		logging.Logf("history: %v", err)
	}
}

func (a *App) recordFinish(ctx context.Context, runID string, result pipeline.Result, runErr error) {
	if a.History == nil {
		return
	}
	state, message := history.StatusDone, "Done"
	if runErr != nil {
		state, message = history.StatusFailed, runErr.Error()
	}
	if err := a.History.Finish(ctx, runID, state, message, unitFailures(result)); err != nil {
		logging.Logf("history: %v", err)
	}
}

func unitFailures(result pipeline.Result) []history.UnitFailure {
	var out []history.UnitFailure
	for _, in := range result.Inputs {
		for _, seq := range in.Missing {
			out = append(out, history.UnitFailure{Input: in.Input, Seq: seq, Error: history.MissingUnit})
		}
		for _, f := range in.Failed {
			out = append(out, history.UnitFailure{Input: in.Input, Seq: f.Seq, Error: f.Err.Error()})
		}
	}
	return out
}
