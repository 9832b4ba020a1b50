// Package doctor runs health checks over a directory holding an integrity
// log and marker files.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Heavybullets8/TT-Migration/internal/audit"
	"github.com/Heavybullets8/TT-Migration/internal/verify"
	"github.com/Heavybullets8/TT-Migration/pkg/fsutil"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == "critical" || f.Severity == "error" {
		r.Healthy = false
	}
}

// Doctor inspects one directory.
type Doctor struct {
	dir string
	log *audit.Log
}

// NewDoctor creates a doctor for dir, reading the log named fileName.
func NewDoctor(dir, fileName string) *Doctor {
	return &Doctor{
		dir: dir,
		log: audit.NewLog(dir, audit.WithFileName(fileName)),
	}
}

// Check runs all diagnostic checks. With strict every marker file in the
// directory is verified as well.
func (d *Doctor) Check(strict bool) (*Result, error) {
	result := &Result{Healthy: true}

	if !d.checkDirectory(result) {
		return result, nil
	}
	d.checkLog(result)
	d.checkLeftovers(result)
	if strict {
		d.checkMarkers(result)
	}
	return result, nil
}

func (d *Doctor) checkDirectory(result *Result) bool {
	if err := fsutil.IsWritableDir(d.dir); err != nil {
		result.add(Finding{
			Category:    "directory",
			Description: fmt.Sprintf("directory not usable: %v", err),
			Severity:    "critical",
			Path:        d.dir,
		})
		return false
	}
	return true
}

func (d *Doctor) checkLog(result *Result) {
	entries, err := d.log.ReadStrict()
	if err != nil {
		result.add(Finding{
			Category:    "log",
			Description: err.Error(),
			Severity:    "critical",
			Path:        d.log.Path(),
		})
		return
	}

	if err := verify.CheckChain(entries); err != nil {
		result.add(Finding{
			Category:    "chain",
			Description: err.Error(),
			Severity:    "critical",
			Path:        d.log.Path(),
		})
	}

	flagged := map[string]bool{}
	for i := range entries {
		if idx := model.LastFor(entries, entries[i].WatchedPath); idx == i && entries[i].Status.Tampered() {
			flagged[entries[i].WatchedPath] = true
		}
	}
	for path := range flagged {
		result.add(Finding{
			Category:    "tamper",
			Description: "latest entry is flagged tampered",
			Severity:    "warning",
			Path:        path,
		})
	}
}

// checkLeftovers reports temp files from interrupted writes and logs that
// were moved aside as corrupt.
func (d *Doctor) checkLeftovers(result *Result) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	corruptPrefix := filepath.Base(d.log.Path()) + ".corrupt-"
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, ".ttm-tmp-"):
			result.add(Finding{
				Category:    "tmp",
				Description: fmt.Sprintf("orphan temp file: %s", name),
				Severity:    "info",
				Path:        filepath.Join(d.dir, name),
			})
		case strings.HasPrefix(name, corruptPrefix):
			result.add(Finding{
				Category:    "log",
				Description: fmt.Sprintf("preserved corrupt log: %s", name),
				Severity:    "warning",
				Path:        filepath.Join(d.dir, name),
			})
		}
	}
}

func (d *Doctor) checkMarkers(result *Result) {
	paths, err := filepath.Glob(filepath.Join(d.dir, model.MarkerPrefix+"*"))
	if err != nil {
		return
	}
	for _, p := range paths {
		r, err := verify.Marker(p)
		if err != nil {
			result.add(Finding{
				Category:    "marker",
				Description: fmt.Sprintf("cannot read marker: %v", err),
				Severity:    "error",
				Path:        p,
			})
			continue
		}
		if r.TamperDetected {
			result.add(Finding{
				Category:    "marker",
				Description: r.Error,
				Severity:    "critical",
				Path:        p,
			})
		}
	}
}
