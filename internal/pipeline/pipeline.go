// Package pipeline runs the external NLP tools behind each service and turns
// their per-unit output into the files the mediator hands back to users.
package pipeline

import (
	"os"

	"clamservices/internal/config"
	"clamservices/internal/domain"
	"clamservices/internal/folia"
	"clamservices/internal/logging"
)

// StatusWriter receives progress messages for the mediator.
type StatusWriter interface {
	Write(message string, percent int) error
}

// Request contains the job descriptor and execution callbacks for one run.
type Request struct {
	RunID string
	Job   domain.JobDescriptor
	// SpacyModel is the resolved model name for the spacy service.
	SpacyModel string
	OnStage    func(input string, stage domain.JobStatus)
	OnLog      func(log CommandLog)
}

// InputResult describes what one input produced.
type InputResult struct {
	Input   string
	Outputs []string
	// Converted counts units merged into the FoLiA document.
	Converted int
	// Failed lists units skipped during conversion.
	Failed []*folia.UnitConversionError
	// Missing lists sequence numbers absent from the unit directory.
	Missing []int
}

// Result contains per-input outcomes and every command log of the run.
type Result struct {
	Inputs []InputResult
	Logs   []CommandLog
}

// Pipeline orchestrates tokenisation, parsing and FoLiA conversion.
type Pipeline struct {
	cfg       config.Config
	status    StatusWriter
	runner    commandRunner
	stat      func(name string) (os.FileInfo, error)
	mkdirAll  func(path string, perm os.FileMode) error
	readDir   func(name string) ([]os.DirEntry, error)
	remove    func(name string) error
	removeAll func(path string) error
	rename    func(oldpath, newpath string) error
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline(cfg config.Config, status StatusWriter) *Pipeline {
	return NewPipelineForTests(cfg, status, &execRunner{})
}

// NewPipelineForTests constructs a pipeline with an injected command runner.
func NewPipelineForTests(cfg config.Config, status StatusWriter, runner commandRunner) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		status:    status,
		runner:    runner,
		stat:      os.Stat,
		mkdirAll:  os.MkdirAll,
		readDir:   os.ReadDir,
		remove:    os.Remove,
		removeAll: os.RemoveAll,
		rename:    os.Rename,
	}
}

func (p *Pipeline) report(message string, percent int) {
	if p.status == nil {
		return
	}
	if err := p.status.Write(message, percent); err != nil {
		logging.Logf("status: %v", err)
	}
}

// collectLogs returns a copy of req whose OnLog also records every command
// log in result.
func collectLogs(req Request, result *Result) Request {
	onLog := req.OnLog
	req.OnLog = func(log CommandLog) {
		result.Logs = append(result.Logs, log)
		emitLog(onLog, log)
	}
	return req
}

// fail reports err as the final status line and returns it.
func (p *Pipeline) fail(err error) error {
	p.report("Failed: "+err.Error(), 100)
	return err
}

func emitStage(fn func(string, domain.JobStatus), input string, stage domain.JobStatus) {
	if fn != nil {
		fn(input, stage)
	}
}

func emitLog(fn func(CommandLog), log CommandLog) {
	if fn != nil {
		fn(log)
	}
}

// progress returns the completion percentage before item i of n.
func progress(i, n int) int {
	if n <= 0 {
		return 0
	}
	return (i*100 + n/2) / n
}
