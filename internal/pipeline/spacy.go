package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"clamservices/internal/domain"
)

// RunSpacy annotates all text and FoLiA inputs with one spacy2folia call.
// The tool writes its output into the working directory, which is set to
// the job's output directory. Stage callbacks see the whole batch as one
// input.
func (p *Pipeline) RunSpacy(ctx context.Context, req Request) (Result, error) {
	var result Result
	if strings.TrimSpace(req.Job.OutputDir) == "" {
		return result, p.fail(processingError("", "processing", "output directory is required", CommandLog{}, nil))
	}
	if strings.TrimSpace(req.SpacyModel) == "" {
		return result, p.fail(processingError("", "processing", "no spaCy model selected", CommandLog{}, nil))
	}
	if err := p.mkdirAll(req.Job.OutputDir, 0o755); err != nil {
		return result, p.fail(processingError("", "processing", "cannot create output directory", CommandLog{}, err))
	}
	req = collectLogs(req, &result)

	inputs := append(req.Job.InputsFor(domain.TemplateText), req.Job.InputsFor(domain.TemplateFoLiA)...)
	args := []string{"--model", req.SpacyModel}
	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		args = append(args, absPath(in.Path))
		names = append(names, filepath.Base(in.Path))
	}
	batch := strings.Join(names, ",")

	emitStage(req.OnStage, batch, domain.JobStatusPreprocessing)
	p.report("Processing ...", 0)
	emitStage(req.OnStage, batch, domain.JobStatusProcessing)

	log, err := p.run(ctx, req, Command{
		Name: p.cfg.Spacy2FoliaBin,
		Args: args,
		Dir:  req.Job.OutputDir,
	})
	if err != nil {
		emitStage(req.OnStage, batch, domain.JobStatusFailed)
		p.report("Spacy returned with an error whilst processing. Aborting", 100)
		return result, processingError(batch, "processing", "spacy2folia failed", log, err)
	}

	for _, in := range inputs {
		result.Inputs = append(result.Inputs, InputResult{Input: in.Path})
	}
	emitStage(req.OnStage, batch, domain.JobStatusDone)
	p.report("Done", 100)
	return result, nil
}
