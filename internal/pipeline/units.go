package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zip"

	"clamservices/internal/folia"
)

// unitName matches per-unit files: a decimal sequence number and .xml.
var unitName = regexp.MustCompile(`^([0-9]+)\.xml$`)

// prepareUnitDir creates dir or removes stale per-unit files left in it by a
// previous run. Files not matching the unit pattern are left alone.
func (p *Pipeline) prepareUnitDir(dir string) error {
	if err := p.mkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create unit directory: %w", err)
	}
	entries, err := p.readDir(dir)
	if err != nil {
		return fmt.Errorf("read unit directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !unitName.MatchString(entry.Name()) {
			continue
		}
		if err := p.remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("remove stale unit %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// unitCollection is the sorted content of a unit directory.
type unitCollection struct {
	Units []folia.Unit
	// Missing lists sequence numbers absent between 1 and the highest unit.
	Missing []int
}

// collectUnits lists per-unit files in dir and sorts them by sequence
// number. Duplicate sequence numbers (e.g. 7.xml and 007.xml) are an error.
func (p *Pipeline) collectUnits(dir string) (unitCollection, error) {
	entries, err := p.readDir(dir)
	if err != nil {
		return unitCollection{}, fmt.Errorf("read unit directory: %w", err)
	}

	seen := map[int]string{}
	var units []folia.Unit
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := unitName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			return unitCollection{}, fmt.Errorf("unit %s: %w", entry.Name(), err)
		}
		if prev, dup := seen[seq]; dup {
			return unitCollection{}, fmt.Errorf("%w: %d (%s, %s)", ErrDuplicateUnit, seq, prev, entry.Name())
		}
		seen[seq] = entry.Name()
		units = append(units, folia.Unit{Seq: seq, Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Seq < units[j].Seq })

	col := unitCollection{Units: units}
	if len(units) > 0 {
		for seq := 1; seq < units[len(units)-1].Seq; seq++ {
			if _, ok := seen[seq]; !ok {
				col.Missing = append(col.Missing, seq)
			}
		}
	}
	return col, nil
}

// zipUnits writes units, in order, into a zip archive at dest.
func zipUnits(dest string, units []folia.Unit) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	for _, unit := range units {
		if err := addZipEntry(zw, unit.Path); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addZipEntry(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// archiveUnitDir renames dir to <dir>_<base> so the next input starts from
// a fresh working directory. An older archive with the same name is replaced.
func (p *Pipeline) archiveUnitDir(dir, base string) (string, error) {
	target := dir + "_" + base
	if _, err := p.stat(target); err == nil {
		if err := p.removeAll(target); err != nil {
			return "", fmt.Errorf("remove old archive %s: %w", target, err)
		}
	}
	if err := p.rename(dir, target); err != nil {
		return "", fmt.Errorf("archive unit directory: %w", err)
	}
	return target, nil
}
