package session

import (
	"encoding/json"
	"time"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/suite"
)

// PhaseTiming records how long one phase took.
type PhaseTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Failed   bool          `json:"failed,omitempty"`
}

// Report is the structured outcome of a pass. Phases that were not run are
// left nil.
type Report struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Data      *diag.FaultRecord     `json:"data,omitempty"`
	Address   *diag.FaultRecord     `json:"address,omitempty"`
	Control   *diag.FaultRecord     `json:"control,omitempty"`
	Crosstalk *diag.CrosstalkResult `json:"crosstalk,omitempty"`
	Groups    []bus.Mask            `json:"coupling_groups,omitempty"`
	Suites    []*suite.Result       `json:"suites,omitempty"`

	Fatal  *diag.OwnershipFault `json:"fatal,omitempty"`
	Phases []PhaseTiming        `json:"phases"`
}

func (r *Report) phase(name string, fn func() error) error {
	began := time.Now()
	err := fn()
	r.Phases = append(r.Phases, PhaseTiming{Name: name, Duration: time.Since(began), Failed: err != nil})
	return err
}

func (r *Report) noteFatal(err error) {
	if f, ok := diag.AsOwnershipFault(err); ok && r.Fatal == nil {
		r.Fatal = f
	}
}

// HasIssues reports whether any fault, ordinary or fatal, was found.
func (r *Report) HasIssues() bool {
	if r.Fatal != nil || r.Crosstalk.HasIssues() {
		return true
	}
	for _, rec := range []*diag.FaultRecord{r.Data, r.Address, r.Control} {
		if rec != nil && rec.HasIssues() {
			return true
		}
	}
	for _, s := range r.Suites {
		if s.HasIssues() {
			return true
		}
	}
	return false
}

// ExportJSON renders the report for archival or a separate front end.
func (r *Report) ExportJSON() ([]byte, error) {
	output := struct {
		Version     string  `json:"version"`
		GeneratedBy string  `json:"generated_by"`
		HasIssues   bool    `json:"has_issues"`
		Report      *Report `json:"report"`
	}{
		Version:     "1.0",
		GeneratedBy: "retrodiag",
		HasIssues:   r.HasIssues(),
		Report:      r,
	}
	return json.MarshalIndent(output, "", "  ")
}
