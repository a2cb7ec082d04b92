// Package batch assesses many recordings concurrently.
//
// A manifest is a CSV file with the columns file, reference and an optional
// speaker. [Run] processes the jobs on a bounded worker pool and returns one
// [Result] per job in manifest order; a failing job is recorded in its
// result and does not stop the others.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Job is one manifest row.
type Job struct {
	// Line is the 1-based line number in the manifest.
	Line int

	File      string
	Reference string
	Speaker   string
}

// ReadManifest parses a CSV manifest. A first row whose first two cells are
// "file" and "reference" (case-insensitive) is treated as a header. Blank
// lines and lines starting with '#' are skipped.
func ReadManifest(r io.Reader) ([]Job, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var jobs []Job
	var errs []error
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("batch: read manifest: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			if len(rec) >= 2 && strings.EqualFold(strings.TrimSpace(rec[0]), "file") &&
				strings.EqualFold(strings.TrimSpace(rec[1]), "reference") {
				continue
			}
		}
		if len(rec) < 2 || len(rec) > 3 {
			errs = append(errs, fmt.Errorf("line %d: want 2 or 3 columns, got %d", line, len(rec)))
			continue
		}
		job := Job{
			Line:      line,
			File:      strings.TrimSpace(rec[0]),
			Reference: strings.TrimSpace(rec[1]),
		}
		if len(rec) == 3 {
			job.Speaker = strings.TrimSpace(rec[2])
		}
		if job.File == "" {
			errs = append(errs, fmt.Errorf("line %d: file is empty", line))
			continue
		}
		jobs = append(jobs, job)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("batch: invalid manifest: %w", err)
	}
	return jobs, nil
}

// ReadManifestFile reads the manifest at path. Relative audio paths are
// resolved against the manifest's directory.
func ReadManifestFile(path string) ([]Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("batch: open manifest: %w", err)
	}
	defer f.Close()

	jobs, err := ReadManifest(f)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i := range jobs {
		if !filepath.IsAbs(jobs[i].File) {
			jobs[i].File = filepath.Join(dir, jobs[i].File)
		}
	}
	return jobs, nil
}
