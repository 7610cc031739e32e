package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theirongolddev/budgetbox/internal/advisor"
	"github.com/theirongolddev/budgetbox/internal/analytics"
	"github.com/theirongolddev/budgetbox/internal/model"
)

// Export is the document written by the export command.
type Export struct {
	ExportedAt         time.Time        `json:"exportedAt" yaml:"exportedAt"`
	Budget             model.Budget     `json:"budget" yaml:"budget"`
	HasUnsyncedChanges bool             `json:"hasUnsyncedChanges" yaml:"hasUnsyncedChanges"`
	Summary            model.Summary    `json:"summary" yaml:"summary"`
	Projection         model.Projection `json:"projection" yaml:"projection"`
	Advice             []model.Advice   `json:"advice" yaml:"advice"`
}

// NewExport derives the full export for b as of now.
func NewExport(b model.Budget, unsynced bool, now time.Time) Export {
	return Export{
		ExportedAt:         now.UTC(),
		Budget:             b,
		HasUnsyncedChanges: unsynced,
		Summary:            analytics.Summarize(b),
		Projection:         analytics.Project(b, now),
		Advice:             advisor.Advise(b),
	}
}

// WriteExport encodes e to w as "json" or "yaml".
func WriteExport(w io.Writer, e Export, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(e); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown export format %q (want json or yaml)", format)
}
