package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"clamservices/internal/domain"
	"clamservices/internal/folia"
	"clamservices/internal/logging"
)

// RunAlpino parses every tokenised or untokenised input with Alpino and
// converts the per-sentence treebank files into one FoLiA document per input.
// Inputs are processed sequentially; the first hard failure aborts the run.
func (p *Pipeline) RunAlpino(ctx context.Context, req Request) (Result, error) {
	var result Result
	outDir := req.Job.OutputDir
	if strings.TrimSpace(outDir) == "" {
		return result, p.fail(preprocessingError("", "preprocessing", "output directory is required", CommandLog{}, nil))
	}
	if err := p.mkdirAll(outDir, 0o755); err != nil {
		return result, p.fail(preprocessingError("", "preprocessing", fmt.Sprintf("cannot create output directory: %s", outDir), CommandLog{}, err))
	}

	req = collectLogs(req, &result)
	inputs := req.Job.InputsFor(domain.TemplateTokenised, domain.TemplateUntokenised)
	for i, in := range inputs {
		res, err := p.alpinoInput(ctx, req, in, i, len(inputs))
		if err != nil {
			emitStage(req.OnStage, in.Path, domain.JobStatusFailed)
			return result, p.fail(err)
		}
		result.Inputs = append(result.Inputs, res)
		emitStage(req.OnStage, in.Path, domain.JobStatusDone)
	}

	p.report("Done", 100)
	return result, nil
}

func (p *Pipeline) alpinoInput(ctx context.Context, req Request, in domain.InputFile, i, n int) (InputResult, error) {
	outDir := req.Job.OutputDir
	base := baseName(in.Path)
	res := InputResult{Input: in.Path}

	emitStage(req.OnStage, in.Path, domain.JobStatusPreprocessing)
	tokFile, cleanup, err := p.prepareTokens(ctx, req, in, base, i, n)
	if err != nil {
		return res, err
	}
	defer cleanup()

	emitStage(req.OnStage, in.Path, domain.JobStatusProcessing)
	p.report("Running Alpino on "+base, progress(i, n))

	unitDir := filepath.Join(outDir, p.cfg.UnitDir)
	if err := p.prepareUnitDir(unitDir); err != nil {
		return res, processingError(in.Path, "processing", "cannot prepare unit directory", CommandLog{}, err)
	}

	log, err := p.run(ctx, req, Command{
		Name:  p.cfg.AlpinoBin(),
		Args:  buildAlpinoArgs(p.cfg.UnitDir, p.cfg.AlpinoUserMax),
		Env:   []string{"ALPINO_HOME=" + p.cfg.AlpinoHome},
		Dir:   outDir,
		Stdin: tokFile,
	})
	if err != nil {
		return res, processingError(in.Path, "processing", "Alpino failed", log, err)
	}

	emitStage(req.OnStage, in.Path, domain.JobStatusCollecting)
	units, err := p.collectUnits(unitDir)
	if err != nil {
		msg := "cannot collect parser output"
		if errors.Is(err, ErrDuplicateUnit) {
			msg = "parser output has duplicate sequence numbers"
		}
		return res, processingError(in.Path, "collecting", msg, CommandLog{}, err)
	}
	res.Missing = units.Missing
	if len(units.Missing) > 0 {
		logging.Logf("pipeline: %s: missing units %v", base, units.Missing)
	}

	zipPath := filepath.Join(outDir, base+".alpinoxml.zip")
	if err := zipUnits(zipPath, units.Units); err != nil {
		return res, processingError(in.Path, "collecting", "cannot write unit archive", CommandLog{}, err)
	}
	res.Outputs = append(res.Outputs, zipPath)

	emitStage(req.OnStage, in.Path, domain.JobStatusConverting)
	p.report("Conversion to FoLiA for "+base, progress(i, n))

	foliaPath := filepath.Join(outDir, base+".folia.xml")
	report, err := folia.Aggregate(units.Units, foliaPath, docInfo(in, base, p.cfg.TokeniserLanguage))
	res.Converted = report.Converted
	res.Failed = report.Failed
	if err != nil {
		return res, processingError(in.Path, "converting", "cannot write FoLiA document", CommandLog{}, err)
	}
	res.Outputs = append(res.Outputs, foliaPath)

	if _, err := p.archiveUnitDir(unitDir, base); err != nil {
		return res, processingError(in.Path, "converting", "cannot archive unit directory", CommandLog{}, err)
	}
	return res, nil
}

// prepareTokens returns the file Alpino reads on stdin: the tokeniser output
// for untokenised text, the input itself (with unix line endings) otherwise.
// cleanup removes any transcoded copy once the parser is done with it.
func (p *Pipeline) prepareTokens(ctx context.Context, req Request, in domain.InputFile, base string, i, n int) (string, func(), error) {
	outDir := req.Job.OutputDir
	src, cleanup, err := transcodeToUTF8(in.Path, in.Meta(domain.MetaEncoding))
	if err != nil {
		return "", cleanup, preprocessingError(in.Path, "preprocessing", "cannot convert input to UTF-8", CommandLog{}, err)
	}

	switch in.Template.Preprocessing() {
	case domain.PreprocessTokenise:
		defer cleanup()
		p.report("Tokenizing "+base, progress(i, n))
		tokFile := filepath.Join(outDir, base+".tok")
		log, err := p.run(ctx, req, Command{
			Name:   p.cfg.UctoBin,
			Args:   []string{"-L", p.cfg.TokeniserLanguage, "-n", src},
			Stdout: tokFile,
		})
		if err != nil {
			return "", func() {}, preprocessingError(in.Path, "preprocessing", "tokeniser failed", log, err)
		}
		return absPath(tokFile), func() {}, nil
	case domain.PreprocessNormalizeNewlines:
		stripCarriageReturns(src)
		return absPath(src), cleanup, nil
	default:
		return absPath(src), cleanup, nil
	}
}

func buildAlpinoArgs(unitDir string, userMax int) []string {
	return []string{
		"-veryfast",
		"-flag", "treebank", unitDir,
		"debug=1",
		"end_hook=xml",
		"user_max=" + strconv.Itoa(userMax),
		"-parse",
	}
}

func docInfo(in domain.InputFile, base, defaultLanguage string) folia.DocInfo {
	info := folia.DocInfo{
		ID:       in.Meta(domain.MetaDocumentID),
		Language: in.Meta(domain.MetaLanguage),
		Author:   in.Meta(domain.MetaAuthor),
	}
	if info.ID == "" {
		info.ID = base
	}
	if info.Language == "" {
		info.Language = defaultLanguage
	}
	return info
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
