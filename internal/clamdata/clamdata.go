// Package clamdata reads the job descriptor the mediator writes for every run
// (the $DATAFILE argument of a service command).
package clamdata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"clamservices/internal/domain"
)

// ErrUnknownTemplate is returned when an input file names a template no
// service declares.
var ErrUnknownTemplate = errors.New("unknown input template")

// ErrPathEscape is returned when an input name resolves outside the input directory.
var ErrPathEscape = errors.New("input path escapes input directory")

type clamXML struct {
	XMLName    xml.Name       `xml:"clam"`
	SystemID   string         `xml:"id,attr"`
	Project    string         `xml:"project,attr"`
	User       string         `xml:"user,attr"`
	Parameters []paramGroup   `xml:"parameters>parametergroup"`
	Inputs     []inputFileXML `xml:"input>file"`
}

type paramGroup struct {
	Name   string     `xml:"name,attr"`
	Params []paramXML `xml:",any"`
}

type paramXML struct {
	XMLName xml.Name
	ID      string  `xml:"id,attr"`
	Value   *string `xml:"value,attr"`
}

type inputFileXML struct {
	Template string    `xml:"template,attr"`
	Name     string    `xml:"name"`
	Meta     []metaXML `xml:"metadata>meta"`
}

type metaXML struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

// sidecarXML is the <CLAMMetaData> document the mediator stores next to each
// uploaded input as .<name>.METADATA.
type sidecarXML struct {
	Meta []metaXML `xml:"meta"`
}

// ReadFile parses the descriptor at path. Input names are resolved against
// inputDir, or against <dir of path>/input when inputDir is empty.
func ReadFile(path, inputDir, outputDir string) (domain.JobDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.JobDescriptor{}, fmt.Errorf("open job descriptor: %w", err)
	}
	defer f.Close()

	if inputDir == "" {
		inputDir = filepath.Join(filepath.Dir(path), "input")
	}
	job, err := Read(f, inputDir)
	if err != nil {
		return domain.JobDescriptor{}, fmt.Errorf("read %s: %w", path, err)
	}
	job.OutputDir = outputDir
	return job, nil
}

// Read parses a descriptor from r.
func Read(r io.Reader, inputDir string) (domain.JobDescriptor, error) {
	var doc clamXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return domain.JobDescriptor{}, fmt.Errorf("decode job descriptor: %w", err)
	}

	job := domain.JobDescriptor{
		SystemID:   doc.SystemID,
		Project:    doc.Project,
		User:       doc.User,
		Parameters: domain.Parameters{},
	}
	for _, group := range doc.Parameters {
		for _, p := range group.Params {
			if p.ID == "" || p.Value == nil {
				continue
			}
			job.Parameters[p.ID] = *p.Value
		}
	}

	for _, in := range doc.Inputs {
		kind, err := domain.ParseTemplateKind(in.Template)
		if err != nil {
			return domain.JobDescriptor{}, fmt.Errorf("%w: %q (file %q)", ErrUnknownTemplate, in.Template, in.Name)
		}
		path, err := resolveInput(inputDir, strings.TrimSpace(in.Name))
		if err != nil {
			return domain.JobDescriptor{}, err
		}
		file := domain.InputFile{
			Path:     path,
			Template: kind,
			Metadata: map[string]string{},
		}
		for _, m := range in.Meta {
			if m.ID != "" {
				file.Metadata[m.ID] = strings.TrimSpace(m.Value)
			}
		}
		if err := mergeSidecar(path, file.Metadata); err != nil {
			return domain.JobDescriptor{}, err
		}
		job.Inputs = append(job.Inputs, file)
	}
	return job, nil
}

// SidecarPath returns the metadata file the mediator keeps for input.
func SidecarPath(input string) string {
	return filepath.Join(filepath.Dir(input), "."+filepath.Base(input)+".METADATA")
}

// mergeSidecar adds entries from the input's metadata file to meta. Inline
// values win. A missing file is not an error.
func mergeSidecar(input string, meta map[string]string) error {
	f, err := os.Open(SidecarPath(input))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open metadata for %s: %w", filepath.Base(input), err)
	}
	defer f.Close()

	var doc sidecarXML
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return fmt.Errorf("decode metadata for %s: %w", filepath.Base(input), err)
	}
	for _, m := range doc.Meta {
		if m.ID == "" {
			continue
		}
		if _, ok := meta[m.ID]; !ok {
			meta[m.ID] = strings.TrimSpace(m.Value)
		}
	}
	return nil
}

// resolveInput joins name onto dir and rejects results outside dir.
func resolveInput(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("input file without a name")
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve input directory: %w", err)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(absDir, name)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(absDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, name)
	}
	return path, nil
}
