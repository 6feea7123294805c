package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"clamservices/internal/domain"
	"clamservices/internal/folia"
)

// uctoOutput is the output flavour selected by the job parameters.
type uctoOutput struct {
	ext   string
	folia bool
}

func selectUctoOutput(params domain.Parameters) uctoOutput {
	switch {
	case params.Bool("xml"):
		return uctoOutput{ext: ".xml", folia: true}
	case params.Bool("verbose"):
		return uctoOutput{ext: ".vtok"}
	default:
		return uctoOutput{ext: ".tok"}
	}
}

// uctoFlags maps boolean parameters to tokeniser flags, in a fixed order.
func uctoFlags(params domain.Parameters) []string {
	var flags []string
	for _, pf := range []struct{ id, flag string }{
		{"verbose", "-V"},
		{"sentenceperline", "-n"},
		{"lowercase", "-l"},
		{"uppercase", "-u"},
	} {
		if params.Bool(pf.id) {
			flags = append(flags, pf.flag)
		}
	}
	return flags
}

// uctoDocumentID returns the documentid metadata or a valid identifier
// derived from the file name.
func uctoDocumentID(in domain.InputFile) string {
	if id := in.Meta(domain.MetaDocumentID); id != "" {
		return id
	}
	name := filepath.Base(in.Path)
	for _, ext := range []string{".txt", ".folia.xml", ".xml"} {
		name = strings.ReplaceAll(name, ext, "")
	}
	if id := folia.NCName(name); id != "" {
		return id
	}
	return "untitled"
}

func buildUctoArgs(in domain.InputFile, src, dest string, out uctoOutput, params domain.Parameters) []string {
	args := []string{"-L", in.Meta(domain.MetaLanguage)}
	if out.folia {
		args = append(args, "-X", "--id="+uctoDocumentID(in))
	}
	args = append(args, uctoFlags(params)...)
	args = append(args, src)
	if out.folia {
		args = append(args, dest)
	}
	return args
}

// RunUcto tokenises every untokenised input into plain, verbose or FoLiA
// output depending on the job parameters.
func (p *Pipeline) RunUcto(ctx context.Context, req Request) (Result, error) {
	var result Result
	outDir := req.Job.OutputDir
	if strings.TrimSpace(outDir) == "" {
		return result, p.fail(processingError("", "processing", "output directory is required", CommandLog{}, nil))
	}
	if err := p.mkdirAll(outDir, 0o755); err != nil {
		return result, p.fail(processingError("", "processing", fmt.Sprintf("cannot create output directory: %s", outDir), CommandLog{}, err))
	}

	req = collectLogs(req, &result)
	out := selectUctoOutput(req.Job.Parameters)
	inputs := req.Job.InputsFor(domain.TemplateUntokenised)
	for i, in := range inputs {
		emitStage(req.OnStage, in.Path, domain.JobStatusPreprocessing)
		dest := filepath.Join(outDir, baseName(in.Path)+out.ext)
		p.report("Producing "+filepath.Base(dest)+"...", progress(i, len(inputs)))

		if in.Meta(domain.MetaLanguage) == "" {
			emitStage(req.OnStage, in.Path, domain.JobStatusFailed)
			p.report("Failed", 100)
			return result, preprocessingError(in.Path, "preprocessing", "language metadata is required", CommandLog{}, nil)
		}
		src, cleanup, err := transcodeToUTF8(in.Path, in.Meta(domain.MetaEncoding))
		if err != nil {
			emitStage(req.OnStage, in.Path, domain.JobStatusFailed)
			p.report("Failed", 100)
			return result, preprocessingError(in.Path, "preprocessing", "cannot convert input to UTF-8", CommandLog{}, err)
		}

		emitStage(req.OnStage, in.Path, domain.JobStatusProcessing)
		c := Command{
			Name: p.cfg.UctoBin,
			Args: buildUctoArgs(in, src, dest, out, req.Job.Parameters),
		}
		if !out.folia {
			c.Stdout = dest
		}
		log, err := p.run(ctx, req, c)
		cleanup()
		if err != nil {
			emitStage(req.OnStage, in.Path, domain.JobStatusFailed)
			p.report("Failed", 100)
			return result, processingError(in.Path, "processing", "tokeniser failed", log, err)
		}

		result.Inputs = append(result.Inputs, InputResult{Input: in.Path, Outputs: []string{dest}})
		emitStage(req.OnStage, in.Path, domain.JobStatusDone)
	}

	p.report("Done", 100)
	return result, nil
}
