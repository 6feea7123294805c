package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clamservices/internal/config"
	"clamservices/internal/diagnostics"
	"clamservices/internal/domain"
	"clamservices/internal/folia"
	"clamservices/internal/history"
	"clamservices/internal/jobs"
	"clamservices/internal/pipeline"
	"clamservices/internal/status"
)

const testDescriptor = `<?xml version="1.0" encoding="UTF-8"?>
<clam id="alpino" project="proj" user="anonymous">
  <parameters>
    <parametergroup name="Options">
      <ChoiceParameter id="model" name="Model" value="nl"/>
    </parametergroup>
  </parameters>
  <input>
    <file template="tokinput"><name>a.tok</name></file>
    <file template="tokinput"><name>b.tok</name></file>
  </input>
</clam>
`

// fakePipeline allows injecting custom run behavior per test.
type fakePipeline struct {
	run      func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	services []string
	lastReq  pipeline.Request
}

func (p *fakePipeline) call(ctx context.Context, service string, req pipeline.Request) (pipeline.Result, error) {
	p.services = append(p.services, service)
	p.lastReq = req
	if p.run == nil {
		return pipeline.Result{}, nil
	}
	return p.run(ctx, req)
}

func (p *fakePipeline) RunAlpino(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	return p.call(ctx, "alpino", req)
}

func (p *fakePipeline) RunUcto(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	return p.call(ctx, "ucto", req)
}

func (p *fakePipeline) RunSpacy(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	return p.call(ctx, "spacy", req)
}

// fakeChecker returns a fixed report.
type fakeChecker struct {
	report domain.DiagnosticReport
	jobs   []domain.JobDescriptor
}

func (c *fakeChecker) RunJob(service domain.Service, cfg config.Config, job domain.JobDescriptor) domain.DiagnosticReport {
	c.jobs = append(c.jobs, job)
	report := c.report
	report.Service = service
	return report
}

// fakeRecorder keeps history calls in memory.
type fakeRecorder struct {
	begun    []string
	status   string
	message  string
	failures []history.UnitFailure
}

func (r *fakeRecorder) Begin(ctx context.Context, id, service, project string) error {
	r.begun = append(r.begun, service+"/"+project)
	return nil
}

func (r *fakeRecorder) Finish(ctx context.Context, id, status, message string, failures []history.UnitFailure) error {
	r.status, r.message, r.failures = status, message, failures
	return nil
}

func newTestApp(t *testing.T, p *fakePipeline, checker *fakeChecker) (*App, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	return &App{
		Config:   config.DefaultConfig(),
		Jobs:     jobs.NewManager(),
		Status:   status.NewChannel("", 100),
		Pipeline: p,
		History:  rec,
		checker:  checker,
	}, rec
}

func writeDescriptor(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "clam.xml")
	if err := os.WriteFile(path, []byte(testDescriptor), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	return path, filepath.Join(root, "output")
}

// TestRunServiceMapsStagesToJobs checks stage callbacks drive the tracker.
func TestRunServiceMapsStagesToJobs(t *testing.T) {
	dataFile, outDir := writeDescriptor(t)
	var seen []domain.JobStatus
	var app *App
	p := &fakePipeline{run: func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		for _, in := range req.Job.Inputs {
			for _, stage := range []domain.JobStatus{
				domain.JobStatusPreprocessing,
				domain.JobStatusProcessing,
				domain.JobStatusCollecting,
				domain.JobStatusConverting,
				domain.JobStatusDone,
			} {
				req.OnStage(in.Path, stage)
				seen = append(seen, app.Jobs.Current().Status)
			}
		}
		return pipeline.Result{Inputs: []pipeline.InputResult{{
			Input:   req.Job.Inputs[0].Path,
			Missing: []int{2},
			Failed:  []*folia.UnitConversionError{{Seq: 3, Err: errors.New("bad tree")}},
		}}}, nil
	}}
	checker := &fakeChecker{}
	app, rec := newTestApp(t, p, checker)

	if _, err := app.RunService(context.Background(), domain.ServiceAlpino, dataFile, outDir); err != nil {
		t.Fatalf("RunService() error = %v", err)
	}
	if len(checker.jobs) != 1 || len(checker.jobs[0].Inputs) != 2 {
		t.Fatalf("checks saw jobs %+v, want the parsed descriptor", checker.jobs)
	}

	if len(seen) != 10 || seen[4] != domain.JobStatusDone || seen[5] != domain.JobStatusPreprocessing {
		t.Fatalf("tracked stages = %v", seen)
	}
	current := app.Jobs.Current()
	if current.Status != domain.JobStatusDone || filepath.Base(current.Input) != "b.tok" {
		t.Fatalf("current job = %+v", current)
	}
	if current.ID != p.lastReq.RunID || current.ID == "" {
		t.Fatalf("job id = %q, run id = %q", current.ID, p.lastReq.RunID)
	}
	if p.lastReq.Job.OutputDir != outDir {
		t.Fatalf("output dir = %q, want %q", p.lastReq.Job.OutputDir, outDir)
	}

	if len(rec.begun) != 1 || rec.begun[0] != "alpino/proj" {
		t.Fatalf("history begin = %v", rec.begun)
	}
	if rec.status != history.StatusDone {
		t.Fatalf("history status = %s, want done", rec.status)
	}
	if len(rec.failures) != 2 ||
		rec.failures[0].Seq != 2 || rec.failures[0].Error != history.MissingUnit ||
		rec.failures[1].Seq != 3 || rec.failures[1].Error != "bad tree" {
		t.Fatalf("history failures = %+v", rec.failures)
	}

	events := app.Status.Since(0)
	if len(events) == 0 || events[0].Message != "Starting..." {
		t.Fatalf("status events = %+v", events)
	}
}

// TestRunServiceConfigurationErrorWritesNoStatus checks checks run first.
func TestRunServiceConfigurationErrorWritesNoStatus(t *testing.T) {
	dataFile, outDir := writeDescriptor(t)
	p := &fakePipeline{}
	app, rec := newTestApp(t, p, &fakeChecker{report: domain.DiagnosticReport{
		HasFailures: true,
		Items: []domain.DiagnosticItem{{
			ID:      "tool_alpino",
			Status:  domain.DiagnosticStatusFail,
			Message: "Tool not found: /opt/Alpino/bin/Alpino",
		}},
	}})

	_, err := app.RunService(context.Background(), domain.ServiceAlpino, dataFile, outDir)
	var cErr *diagnostics.ConfigurationError
	if !errors.As(err, &cErr) {
		t.Fatalf("error = %v, want *diagnostics.ConfigurationError", err)
	}
	if len(p.services) != 0 {
		t.Fatalf("pipeline called: %v", p.services)
	}
	if _, ok := app.Status.Last(); ok {
		t.Fatal("no status line expected before checks pass")
	}
	if len(rec.begun) != 0 {
		t.Fatalf("history begin = %v", rec.begun)
	}
}

// TestRunServiceInvalidDescriptor checks unreadable data files.
func TestRunServiceInvalidDescriptor(t *testing.T) {
	app, _ := newTestApp(t, &fakePipeline{}, &fakeChecker{})
	_, err := app.RunService(context.Background(), domain.ServiceUcto, filepath.Join(t.TempDir(), "missing.xml"), t.TempDir())
	if !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("error = %v, want ErrInvalidJob", err)
	}
}

// TestRunServiceSpacyResolvesModel checks language codes become model names.
func TestRunServiceSpacyResolvesModel(t *testing.T) {
	dataFile, outDir := writeDescriptor(t)
	p := &fakePipeline{}
	app, _ := newTestApp(t, p, &fakeChecker{})

	if _, err := app.RunService(context.Background(), domain.ServiceSpacy, dataFile, outDir); err != nil {
		t.Fatalf("RunService() error = %v", err)
	}
	if p.lastReq.SpacyModel != "nl_core_news_sm" {
		t.Fatalf("spacy model = %q, want nl_core_news_sm", p.lastReq.SpacyModel)
	}
}

// TestRunServiceRecordsPipelineFailure checks failed runs land in history.
func TestRunServiceRecordsPipelineFailure(t *testing.T) {
	dataFile, outDir := writeDescriptor(t)
	pErr := &pipeline.PipelineError{Kind: pipeline.KindProcessing, Stage: "processing", Message: "Alpino failed"}
	p := &fakePipeline{run: func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		req.OnStage(req.Job.Inputs[0].Path, domain.JobStatusPreprocessing)
		req.OnStage(req.Job.Inputs[0].Path, domain.JobStatusProcessing)
		req.OnStage(req.Job.Inputs[0].Path, domain.JobStatusFailed)
		return pipeline.Result{}, pErr
	}}
	app, rec := newTestApp(t, p, &fakeChecker{})

	_, err := app.RunService(context.Background(), domain.ServiceUcto, dataFile, outDir)
	if !errors.Is(err, pErr) {
		t.Fatalf("error = %v, want pipeline error", err)
	}
	if app.Jobs.Current().Status != domain.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", app.Jobs.Current().Status)
	}
	if rec.status != history.StatusFailed || rec.message != pErr.Error() {
		t.Fatalf("history = %s %q", rec.status, rec.message)
	}
}

// TestNewLoadsConfigAndOpensHistory checks wiring from a config file.
func TestNewLoadsConfigAndOpensHistory(t *testing.T) {
	t.Setenv("ALPINO_HOME", "")
	t.Setenv("CLAMSERVICES_HISTORY_DB", "")
	root := t.TempDir()
	cfgPath := filepath.Join(root, "clamservices.yml")
	cfg := config.DefaultConfig()
	cfg.HistoryDB = filepath.Join(root, "history.db")
	cfg.AlpinoHome = "/srv/alpino"
	if err := config.NewYAMLStore(cfgPath).Save(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	app, err := New(context.Background(), Options{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Config.AlpinoHome != "/srv/alpino" {
		t.Fatalf("alpino home = %q", app.Config.AlpinoHome)
	}
	if app.History == nil {
		t.Fatal("expected history store")
	}
	if _, err := os.Stat(cfg.HistoryDB); err != nil {
		t.Fatalf("history db missing: %v", err)
	}
}
