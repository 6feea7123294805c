package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"clamservices/internal/config"
	"clamservices/internal/domain"
)

// ConfigurationError reports a deployment problem found before any
// processing started.
type ConfigurationError struct {
	Report domain.DiagnosticReport
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	failures := e.Report.Failures()
	msgs := make([]string, 0, len(failures))
	for _, item := range failures {
		msgs = append(msgs, item.Message)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Report.Service, strings.Join(msgs, "; "))
}

// Verify turns a report with failures into a ConfigurationError.
func Verify(report domain.DiagnosticReport) error {
	if !report.HasFailures {
		return nil
	}
	return &ConfigurationError{Report: report}
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cErr *ConfigurationError
	return errors.As(err, &cErr)
}

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return NewCheckerForTests(exec.LookPath, os.Stat, os.MkdirAll, os.CreateTemp, os.Remove)
}

// Run executes the checks service needs and returns a combined report.
// outputDir is skipped when empty. Without a job the tokeniser is optional
// for Alpino.
func (c *Checker) Run(service domain.Service, cfg config.Config, outputDir string) domain.DiagnosticReport {
	return c.RunJob(service, cfg, domain.JobDescriptor{OutputDir: outputDir})
}

// RunJob is Run narrowed to job: Alpino requires the tokeniser only when the
// job carries untokenised input.
func (c *Checker) RunJob(service domain.Service, cfg config.Config, job domain.JobDescriptor) domain.DiagnosticReport {
	outputDir := job.OutputDir
	var items []domain.DiagnosticItem
	switch service {
	case domain.ServiceAlpino:
		tokeniser := c.checkTool("ucto", cfg.UctoBin)
		if tokeniser.Status == domain.DiagnosticStatusFail && len(job.InputsFor(domain.TemplateUntokenised)) == 0 {
			tokeniser.Status = domain.DiagnosticStatusWarn
			tokeniser.Message += " (only needed for untokenised input)"
		}
		items = append(items,
			c.checkDir("alpino_home", "Alpino home", cfg.AlpinoHome),
			c.checkTool("alpino", cfg.AlpinoBin()),
			tokeniser,
		)
	case domain.ServiceUcto:
		items = append(items, c.checkTool("ucto", cfg.UctoBin))
	case domain.ServiceSpacy:
		items = append(items, c.checkTool("spacy2folia", cfg.Spacy2FoliaBin))
		if strings.TrimSpace(cfg.SpacyModelsDir) != "" {
			items = append(items, c.checkDir("spacy_models", "spaCy models", cfg.SpacyModelsDir))
		}
	default:
		items = append(items, domain.DiagnosticItem{
			ID:      "service",
			Name:    "Service",
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Unknown service: %q", service),
		})
	}
	if outputDir != "" {
		items = append(items, c.checkOutputDir(outputDir))
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		Service:     service,
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies an executable exists, either on PATH or at the given path.
func (c *Checker) checkTool(id, name string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "tool_" + id,
		Name: id,
	}
	if strings.TrimSpace(name) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("No executable configured for %s.", id)
		item.Hint = "Set the binary path in the configuration file."
		return item
	}

	path, err := c.lookPath(name)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found: %s", name)
		item.Hint = "Install it and ensure the binary is executable and on PATH."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkDir validates that a configured directory exists.
func (c *Checker) checkDir(id, name, dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: id, Name: name}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is empty.", name)
		return item
	}

	info, err := c.stat(dir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("%s does not exist: %s", name, dir)
		} else {
			item.Message = fmt.Sprintf("Cannot access %s: %s", strings.ToLower(name), dir)
		}
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is not a directory: %s", name, dir)
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Directory found: %s", dir)
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Check the mediator's project directory permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Check the mediator's project directory permissions."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
