package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// EvidenceRecommender scores unfetched artifacts by how much they would add
// to the evidence gathered so far. It is keyword-driven: each problem type
// has a set of evidence categories, and an artifact earns score for covering
// categories the accumulated evidence still lacks.
type EvidenceRecommender struct {
	catalog   []CatalogEntry
	threshold float64
}

// NewEvidenceRecommender creates a recommender over the standard artifact
// catalog. Artifacts scoring at or below threshold are never recommended.
func NewEvidenceRecommender(threshold float64) *EvidenceRecommender {
	return &EvidenceRecommender{
		catalog:   ArtifactCatalog,
		threshold: threshold,
	}
}

// Recommend returns unfetched artifacts ranked by relevance, highest first.
// Scores fall in (threshold, 1.0]; artifacts at or below the threshold are
// dropped. Ties keep catalog order. An empty result means the evidence on
// hand already covers every category the problem type needs.
func (r *EvidenceRecommender) Recommend(problemType ProblemType, state *ContextState) []EvidenceRecommendation {
	missing := r.missingCategories(problemType, state)
	if len(missing) == 0 {
		return nil
	}
	strong := strongIndicatorsFor(problemType)

	var recs []EvidenceRecommendation
	for _, entry := range r.catalog {
		if state.HasEvidence(entry.Name) {
			continue
		}

		desc := strings.ToLower(entry.Description)
		score := 0.0
		var matched []string
		for _, cat := range missing {
			hits := 0
			for _, kw := range cat.Keywords {
				if strings.Contains(desc, kw) {
					hits++
				}
			}
			if hits > 0 {
				contribution := float64(hits) * 0.2
				if contribution > 1.0 {
					contribution = 1.0
				}
				score += contribution
				matched = append(matched, cat.Name)
			}
		}

		if hasAny(desc, strong) {
			score *= 1.2
		}
		if score > 1.0 {
			score = 1.0
		}
		if score <= r.threshold {
			continue
		}

		recs = append(recs, EvidenceRecommendation{
			Artifact: entry.Name,
			Score:    score,
			Priority: artifactPriority(entry, strong),
			Reason:   fmt.Sprintf("covers missing evidence: %s", strings.Join(matched, ", ")),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	return recs
}

// missingCategories returns the evidence categories for the problem type that
// the accumulated text does not cover yet. The accumulated text carries the
// fetched artifact contents and every round's raw model response, so a
// category the model already reasoned about counts as covered.
func (r *EvidenceRecommender) missingCategories(problemType ProblemType, state *ContextState) []evidenceCategory {
	accumulated := strings.ToLower(state.AccumulatedText)

	var missing []evidenceCategory
	for _, cat := range categoriesFor(problemType) {
		if !hasAny(accumulated, cat.Keywords) {
			missing = append(missing, cat)
		}
	}
	return missing
}

// SeedPriority scores a seed artifact for fetch ordering. Scripts lead
// because the submitted code anchors every diagnosis; logs and config
// follow.
func SeedPriority(name string, problemType ProblemType) float64 {
	text := strings.ToLower(name)
	if entry, ok := CatalogEntryByName(name); ok {
		text += " " + strings.ToLower(entry.Description)
	}
	return priorityFor(text, strongIndicatorsFor(problemType))
}

func artifactPriority(entry CatalogEntry, strong []string) float64 {
	return priorityFor(strings.ToLower(entry.Name+" "+entry.Description), strong)
}

func priorityFor(text string, strong []string) float64 {
	priority := 0.5
	if strings.Contains(text, "script") {
		priority += 0.3
	}
	if strings.Contains(text, "log") {
		priority += 0.2
	}
	if strings.Contains(text, "config") {
		priority += 0.1
	}
	if hasAny(text, strong) {
		priority += 0.2
	}
	if priority > 1.0 {
		priority = 1.0
	}
	return priority
}

func hasAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
