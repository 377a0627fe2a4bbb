package orchestrate

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/erpdesk/printflow/internal/fleet"
)

// Candidate is an online substitute printer ranked by name similarity to
// the requested printer.
type Candidate struct {
	Printer fleet.Printer `json:"printer"`
	Score   float64       `json:"score"`
}

// Resolution is the outcome of matching a requested printer against a live
// fleet snapshot.
type Resolution struct {
	DefaultAvailable bool              `json:"default_available"`
	RequiredType     fleet.PrinterType `json:"required_type"`
	Candidates       []Candidate       `json:"candidates"`
}

// Resolver finds the best substitute when the operator's default printer is
// offline. Candidate ordering is deterministic: similarity descending, then
// name ascending.
type Resolver struct {
	// MatchNameAcrossTypes keeps a same-named printer of a different class
	// counting as the default. Mirrors the dashboard's historical behaviour;
	// turn off to require a type-exact default.
	MatchNameAcrossTypes bool

	metric *metrics.Levenshtein
}

func NewResolver() *Resolver {
	m := metrics.NewLevenshtein()
	m.CaseSensitive = false
	return &Resolver{
		MatchNameAcrossTypes: true,
		metric:               m,
	}
}

// Resolve matches requestedName/requestedType against the snapshot. An
// empty fleet yields an empty candidate list, never an error.
func (r *Resolver) Resolve(requestedName string, requestedType fleet.PrinterType, snapshot []fleet.Printer) Resolution {
	res := Resolution{RequiredType: requestedType}

	for _, p := range snapshot {
		if !p.Online() || !strings.EqualFold(p.Name, requestedName) {
			continue
		}
		if p.Type == requestedType {
			res.DefaultAvailable = true
			return res
		}
		if r.MatchNameAcrossTypes {
			res.DefaultAvailable = true
			return res
		}
	}

	for _, p := range snapshot {
		if !p.Online() || p.Type != requestedType {
			continue
		}
		res.Candidates = append(res.Candidates, Candidate{
			Printer: p,
			Score:   strutil.Similarity(requestedName, p.Name, r.metric),
		})
	}

	sort.Slice(res.Candidates, func(i, j int) bool {
		if res.Candidates[i].Score != res.Candidates[j].Score {
			return res.Candidates[i].Score > res.Candidates[j].Score
		}
		return res.Candidates[i].Printer.Name < res.Candidates[j].Printer.Name
	})

	return res
}
