package domain

import "fmt"

// JobStatus tracks each pipeline stage for the input file being processed.
type JobStatus string

const (
	JobStatusPending       JobStatus = "pending"
	JobStatusPreprocessing JobStatus = "preprocessing"
	JobStatusProcessing    JobStatus = "processing"
	JobStatusCollecting    JobStatus = "collecting"
	JobStatusConverting    JobStatus = "converting"
	JobStatusDone          JobStatus = "done"
	JobStatusFailed        JobStatus = "failed"
)

// TemplateKind identifies the input template an uploaded file matched.
type TemplateKind string

const (
	TemplateTokenised   TemplateKind = "tokinput"
	TemplateUntokenised TemplateKind = "untokinput"
	TemplateFoLiA       TemplateKind = "foliainput"
	TemplateText        TemplateKind = "textinput"
)

// Preprocessing is the step an input needs before the main tool runs.
type Preprocessing int

const (
	PreprocessNone Preprocessing = iota
	PreprocessTokenise
	PreprocessNormalizeNewlines
)

// ParseTemplateKind maps a template id from the job descriptor to a known kind.
func ParseTemplateKind(raw string) (TemplateKind, error) {
	switch kind := TemplateKind(raw); kind {
	case TemplateTokenised, TemplateUntokenised, TemplateFoLiA, TemplateText:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown input template %q", raw)
	}
}

// Preprocessing reports which preparation step files of this kind need.
func (k TemplateKind) Preprocessing() Preprocessing {
	switch k {
	case TemplateUntokenised:
		return PreprocessTokenise
	case TemplateTokenised:
		return PreprocessNormalizeNewlines
	case TemplateFoLiA, TemplateText:
		return PreprocessNone
	default:
		panic(fmt.Sprintf("unhandled template kind %q", string(k)))
	}
}

// Well-known metadata keys carried by input files.
const (
	MetaLanguage   = "language"
	MetaAuthor     = "author"
	MetaDocumentID = "documentid"
	MetaEncoding   = "encoding"
)

// InputFile is one uploaded file with the template it matched.
type InputFile struct {
	Path     string            `json:"path"`
	Template TemplateKind      `json:"template"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta returns a metadata value or the empty string.
func (f InputFile) Meta(key string) string {
	if f.Metadata == nil {
		return ""
	}
	return f.Metadata[key]
}

// JobDescriptor is the mediator's description of one processing request.
type JobDescriptor struct {
	SystemID   string      `json:"systemId"`
	Project    string      `json:"project"`
	User       string      `json:"user"`
	Inputs     []InputFile `json:"inputs"`
	Parameters Parameters  `json:"parameters"`
	OutputDir  string      `json:"outputDir"`
}

// InputsFor returns inputs that matched any of the given templates, in descriptor order.
func (j JobDescriptor) InputsFor(kinds ...TemplateKind) []InputFile {
	var out []InputFile
	for _, in := range j.Inputs {
		for _, kind := range kinds {
			if in.Template == kind {
				out = append(out, in)
				break
			}
		}
	}
	return out
}

// Parameters holds the chosen global parameter values keyed by parameter id.
type Parameters map[string]string

// String returns the raw parameter value.
func (p Parameters) String(id string) string {
	if p == nil {
		return ""
	}
	return p[id]
}

// Bool reports whether a boolean parameter is set.
func (p Parameters) Bool(id string) bool {
	switch p.String(id) {
	case "1", "true", "True", "yes":
		return true
	default:
		return false
	}
}

// Job identifies the input currently moving through a service pipeline.
type Job struct {
	ID     string    `json:"id"`
	Input  string    `json:"input"`
	Status JobStatus `json:"status"`
}

// Service names one wrapped NLP tool chain.
type Service string

const (
	ServiceAlpino Service = "alpino"
	ServiceUcto   Service = "ucto"
	ServiceSpacy  Service = "spacy"
)

// Services lists every service in a stable order.
func Services() []Service {
	return []Service{ServiceAlpino, ServiceUcto, ServiceSpacy}
}
