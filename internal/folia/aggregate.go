// Package folia builds combined FoLiA documents from per-sentence Alpino
// treebank files.
package folia

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"

	"clamservices/internal/logging"
)

// Unit is one per-sentence file with the sequence number taken from its name.
type Unit struct {
	Seq  int
	Path string
}

// UnitConversionError reports a unit that could not be merged into the
// combined document.
type UnitConversionError struct {
	Seq   int
	Path  string
	Err   error
	Stack []byte
}

func (e *UnitConversionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("convert unit %d (%s): %v", e.Seq, e.Path, e.Err)
}

func (e *UnitConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Report summarises one Aggregate call.
type Report struct {
	Converted int
	Failed    []*UnitConversionError
}

// Aggregate merges units, in the order given, into one FoLiA document written
// to destPath. A unit that fails to convert is logged, recorded in the report
// and skipped; the returned error is reserved for failures to write destPath.
// An empty units slice produces a valid document without sentences.
func Aggregate(units []Unit, destPath string, info DocInfo) (Report, error) {
	doc := NewDocument(info)
	var report Report

	for _, unit := range units {
		s, err := convertUnit(unit, doc.ID+".s."+strconv.Itoa(unit.Seq))
		if err != nil {
			report.Failed = append(report.Failed, err)
			logging.Logf("folia: skipping unit %d of %s: %v\n%s", err.Seq, doc.ID, err.Err, err.Stack)
			continue
		}
		doc.Text.Sentences = append(doc.Text.Sentences, s)
		report.Converted++
	}

	if err := doc.Save(destPath); err != nil {
		return report, err
	}
	return report, nil
}

// convertUnit reads and converts one unit, turning panics in the converter
// into a UnitConversionError so sibling units are unaffected.
func convertUnit(unit Unit, sid string) (s Sentence, convErr *UnitConversionError) {
	defer func() {
		if r := recover(); r != nil {
			convErr = &UnitConversionError{
				Seq:   unit.Seq,
				Path:  unit.Path,
				Err:   fmt.Errorf("panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	data, err := os.ReadFile(unit.Path)
	if err != nil {
		return Sentence{}, &UnitConversionError{Seq: unit.Seq, Path: unit.Path, Err: err, Stack: debug.Stack()}
	}
	s, err = convertAlpino(data, sid)
	if err != nil {
		return Sentence{}, &UnitConversionError{Seq: unit.Seq, Path: unit.Path, Err: err, Stack: debug.Stack()}
	}
	return s, nil
}
