package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/pkang0831/fromFatToFit/internal/domain"
)

// Scoring weights for the fuzzy food matcher. The dominant signal is the
// missing-word penalty: a record missing any query word in a field keeps only
// a tenth of that field's score, so full matches almost always win.
const (
	perWordScore        = 10.0
	phraseBonus         = 40.0
	phrasePrefixBonus   = 20.0
	allWordsFieldBonus  = 30.0
	orderedProximityMax = 15.0
	proximityWindow     = 80.0
	missingWordPenalty  = 0.1
	allWordsRecordBonus = 25.0

	descriptionWeight = 1.0
	brandWeight       = 0.5
	categoryWeight    = 0.3
)

// SearchService ranks food records against free-text queries using the
// in-memory dataset. Scoring is pure computation over the immutable dataset;
// the only I/O is the optional micronutrient panel fetch.
type SearchService struct {
	datasets  domain.DatasetProvider
	nutrients domain.NutrientRepository
}

// NewSearchService creates a search service. nutrients may be a repository
// over an absent fact file; micronutrient panels are then simply empty.
func NewSearchService(datasets domain.DatasetProvider, nutrients domain.NutrientRepository) *SearchService {
	return &SearchService{
		datasets:  datasets,
		nutrients: nutrients,
	}
}

// Search returns the top-scoring food records for the query, at most limit.
// An empty or whitespace-only query returns an empty slice, not an error.
// When includeMicros is set the micronutrient panel is attached to each hit;
// otherwise the fact-table lookup is skipped entirely.
func (s *SearchService) Search(ctx context.Context, query string, limit int, includeMicros bool) ([]domain.SearchResult, error) {
	phrase := domain.Lower(query)
	if phrase == "" {
		return []domain.SearchResult{}, nil
	}
	if limit <= 0 {
		return []domain.SearchResult{}, nil
	}

	ds, err := s.datasets.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	words := strings.Fields(phrase)
	candidates := candidatePositions(ds, words)

	type scored struct {
		pos   int
		score float64
	}
	hits := make([]scored, 0, len(candidates))
	for _, pos := range candidates {
		if sc := scoreRecord(ds.At(pos), phrase, words); sc > 0 {
			hits = append(hits, scored{pos: pos, score: sc})
		}
	}

	// Candidates are in dataset order, so the stable sort breaks score ties
	// by dataset order as loaded from the gold file.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.SearchResult{SearchRecord: *ds.At(h.pos)}
	}

	if includeMicros && len(results) > 0 {
		ids := make([]int64, len(results))
		for i := range results {
			ids[i] = results[i].FdcID
		}
		panels, err := micronutrientPanels(ctx, s.nutrients, ids)
		if err != nil {
			return nil, err
		}
		for i := range results {
			results[i].Micronutrients = panels[results[i].FdcID]
		}
	}
	return results, nil
}

// candidatePositions pre-filters the dataset through the prefix index: the
// union of the buckets for every query word of length >= 3. The index is an
// optimization only; when no bucket matches the whole dataset is scanned so
// a miss can never hide a real match.
func candidatePositions(ds *domain.Dataset, words []string) []int {
	seen := make(map[int]struct{})
	var positions []int
	for _, w := range words {
		key := domain.PrefixKey(w)
		if key == "" {
			continue
		}
		for _, pos := range ds.PrefixBucket(key) {
			if _, ok := seen[pos]; ok {
				continue
			}
			seen[pos] = struct{}{}
			positions = append(positions, pos)
		}
	}
	if len(positions) == 0 {
		positions = make([]int, ds.Len())
		for i := range positions {
			positions[i] = i
		}
		return positions
	}
	sort.Ints(positions)
	return positions
}

func scoreRecord(rec *domain.SearchRecord, phrase string, words []string) float64 {
	total := scoreField(rec.DescriptionLower, phrase, words) * descriptionWeight
	total += scoreField(rec.BrandLower, phrase, words) * brandWeight
	total += scoreField(rec.CategoryLower, phrase, words) * categoryWeight

	// A record whose fields jointly contain every query word beats any record
	// matching a single word repeatedly, even across different fields.
	if len(words) > 1 && allWordsAcrossFields(rec, words) {
		total += allWordsRecordBonus
	}
	return total
}

// scoreField scores one lowercased field against the query. The returned
// value is zero when nothing matches.
func scoreField(field, phrase string, words []string) float64 {
	if field == "" {
		return 0
	}

	matched := 0
	for _, w := range words {
		if strings.Contains(field, w) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	score := float64(matched) * perWordScore

	if strings.Contains(field, phrase) {
		score += phraseBonus
		if strings.HasPrefix(field, phrase) {
			score += phrasePrefixBonus
		}
	}

	if matched == len(words) {
		score += allWordsFieldBonus
		if span, ordered := orderedSpan(field, words); ordered {
			scale := 1.0 - float64(span)/proximityWindow
			if scale > 0 {
				score += orderedProximityMax * scale
			}
		}
	} else if len(words) > 1 {
		// Dominant ranking signal: a field missing any query word keeps
		// only a fraction of its score.
		score *= missingWordPenalty
	}
	return score
}

// orderedSpan reports whether the words appear in the field in query order
// and, if so, the distance from the start of the first to the start of the
// last occurrence.
func orderedSpan(field string, words []string) (int, bool) {
	offset := 0
	first, last := -1, -1
	for _, w := range words {
		i := strings.Index(field[offset:], w)
		if i < 0 {
			return 0, false
		}
		abs := offset + i
		if first < 0 {
			first = abs
		}
		last = abs
		offset = abs + len(w)
	}
	return last - first, true
}

func allWordsAcrossFields(rec *domain.SearchRecord, words []string) bool {
	for _, w := range words {
		if !strings.Contains(rec.DescriptionLower, w) &&
			!strings.Contains(rec.BrandLower, w) &&
			!strings.Contains(rec.CategoryLower, w) {
			return false
		}
	}
	return true
}
