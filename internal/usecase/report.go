package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ObservationsIndexer/internal/domain"
)

// Report aggregates the outcomes of one batch.
type Report struct {
	RunID    string
	Label    string
	Started  time.Time
	Finished time.Time

	Inserted int
	Updated  int
	Skipped  int
	Failed   int

	// FailuresByKind counts failed and skipped records per error kind.
	FailuresByKind map[string]int
	// Examples holds the first few failure messages.
	Examples       []string
	Catalog        *domain.CatalogSummary

	maxExamples int
}

func newReport(label string, maxExamples int) Report {
	return Report{
		RunID:          newRunID(),
		Label:          label,
		Started:        time.Now().UTC(),
		FailuresByKind: map[string]int{},
		maxExamples:    maxExamples,
	}
}

func (r *Report) count(action domain.Action) {
	switch action {
	case domain.ActionInsert:
		r.Inserted++
	case domain.ActionUpdate:
		r.Updated++
	default:
		r.Skipped++
	}
}

func (r *Report) skip(path string, err error) {
	r.Skipped++
	r.FailuresByKind[KindUnclassifiable]++
	r.example(path, err)
}

func (r *Report) fail(kind, path string, err error) {
	r.Failed++
	r.FailuresByKind[kind]++
	r.example(path, err)
}

func (r *Report) example(path string, err error) {
	if len(r.Examples) < r.maxExamples {
		r.Examples = append(r.Examples, fmt.Sprintf("%s: %v", path, err))
	}
}

func (r *Report) finish() {
	r.Finished = time.Now().UTC()
}

// Total is the number of records the batch accounted for.
func (r Report) Total() int {
	return r.Inserted + r.Updated + r.Skipped + r.Failed
}

// String renders the report as plain text for logs and notifications.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]: inserted=%d updated=%d skipped=%d failed=%d",
		r.Label, r.RunID, r.Inserted, r.Updated, r.Skipped, r.Failed)

	if len(r.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(r.FailuresByKind))
		for k := range r.FailuresByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(&b, "\n  %s: %d", k, r.FailuresByKind[k])
		}
	}
	for _, ex := range r.Examples {
		fmt.Fprintf(&b, "\n  - %s", ex)
	}
	if r.Catalog != nil {
		fmt.Fprintf(&b, "\ncatalog: %d entries", r.Catalog.Count)
		if r.Catalog.First != nil && r.Catalog.Last != nil {
			fmt.Fprintf(&b, " from %s to %s", r.Catalog.First.Format("2006-01-02"), r.Catalog.Last.Format("2006-01-02"))
		}
	}
	return b.String()
}
