package folia

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

const (
	Namespace = "http://ilk.uvt.nl/folia"
	Version   = "2.0.0"
	Generator = "clamservices"

	PosSet        = "alpino-cgn"
	SyntaxSet     = "alpino-syntax"
	DependencySet = "alpino-dependencies"
)

// Document is the subset of the FoLiA format produced from Alpino parses.
type Document struct {
	XMLName   xml.Name `xml:"FoLiA"`
	Xmlns     string   `xml:"xmlns,attr"`
	ID        string   `xml:"http://www.w3.org/XML/1998/namespace id,attr"`
	Version   string   `xml:"version,attr"`
	Generator string   `xml:"generator,attr,omitempty"`
	Metadata  Metadata `xml:"metadata"`
	Text      Text     `xml:"text"`
}

type Metadata struct {
	Type        string      `xml:"type,attr"`
	Annotations Annotations `xml:"annotations"`
	Meta        []Meta      `xml:"meta"`
}

type Annotations struct {
	Items []Annotation `xml:",any"`
}

// Annotation is one annotation declaration; XMLName carries the
// declaration type (pos-annotation, lemma-annotation, ...).
type Annotation struct {
	XMLName xml.Name
	Set     string `xml:"set,attr,omitempty"`
}

type Meta struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type Text struct {
	ID        string     `xml:"http://www.w3.org/XML/1998/namespace id,attr"`
	Sentences []Sentence `xml:"s"`
}

type Sentence struct {
	ID           string        `xml:"http://www.w3.org/XML/1998/namespace id,attr"`
	Text         string        `xml:"t,omitempty"`
	Words        []Word        `xml:"w"`
	Syntax       *Syntax       `xml:"syntax"`
	Dependencies *Dependencies `xml:"dependencies"`
}

type Word struct {
	ID    string `xml:"http://www.w3.org/XML/1998/namespace id,attr"`
	Text  string `xml:"t"`
	POS   *Class `xml:"pos"`
	Lemma *Class `xml:"lemma"`
}

type Class struct {
	Class string `xml:"class,attr"`
	Set   string `xml:"set,attr,omitempty"`
}

type Syntax struct {
	Set   string          `xml:"set,attr,omitempty"`
	Units []SyntacticUnit `xml:"su"`
}

type SyntacticUnit struct {
	ID    string          `xml:"http://www.w3.org/XML/1998/namespace id,attr"`
	Class string          `xml:"class,attr"`
	Units []SyntacticUnit `xml:"su"`
	WRefs []WRef          `xml:"wref"`
}

type WRef struct {
	ID   string `xml:"id,attr"`
	Text string `xml:"t,attr,omitempty"`
}

type Dependencies struct {
	Set  string       `xml:"set,attr,omitempty"`
	Deps []Dependency `xml:"dependency"`
}

type Dependency struct {
	ID    string  `xml:"http://www.w3.org/XML/1998/namespace id,attr"`
	Class string  `xml:"class,attr"`
	Head  DepPart `xml:"hd"`
	Dep   DepPart `xml:"dep"`
}

type DepPart struct {
	WRefs []WRef `xml:"wref"`
}

// DocInfo is the job-level metadata stamped on a combined document.
type DocInfo struct {
	ID       string
	Language string
	Author   string
}

// NewDocument creates an empty document carrying info.
func NewDocument(info DocInfo) *Document {
	id := NCName(info.ID)
	if id == "" {
		id = "untitled"
	}
	doc := &Document{
		Xmlns:     Namespace,
		ID:        id,
		Version:   Version,
		Generator: Generator,
		Metadata: Metadata{
			Type: "native",
			Annotations: Annotations{Items: []Annotation{
				{XMLName: xml.Name{Local: "token-annotation"}},
				{XMLName: xml.Name{Local: "sentence-annotation"}},
				{XMLName: xml.Name{Local: "pos-annotation"}, Set: PosSet},
				{XMLName: xml.Name{Local: "lemma-annotation"}},
				{XMLName: xml.Name{Local: "syntax-annotation"}, Set: SyntaxSet},
				{XMLName: xml.Name{Local: "dependency-annotation"}, Set: DependencySet},
			}},
		},
		Text: Text{ID: id + ".text"},
	}
	if info.Language != "" {
		doc.Metadata.Meta = append(doc.Metadata.Meta, Meta{ID: "language", Value: info.Language})
	}
	if info.Author != "" {
		doc.Metadata.Meta = append(doc.Metadata.Meta, Meta{ID: "author", Value: info.Author})
	}
	return doc
}

// Save writes the document to path through a temporary file in the same
// directory, so readers never observe a partial document.
func (d *Document) Save(path string) error {
	data, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal folia: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.WriteString(xml.Header)
	if werr == nil {
		_, werr = tmp.Write(data)
	}
	if werr == nil {
		_, werr = tmp.WriteString("\n")
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write document: %w", werr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename document: %w", err)
	}
	return nil
}

// Load parses a FoLiA document written by Save.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse folia %s: %w", path, err)
	}
	return &doc, nil
}
