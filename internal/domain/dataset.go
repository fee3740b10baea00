package domain

import (
	"math"
	"strings"
)

// PrefixLength is the number of leading characters of a lowercased
// description used as the bucket key for candidate pre-filtering.
const PrefixLength = 3

// Dataset is the immutable in-memory form of the gold search table: the
// records in file order, an id-keyed lookup map, and a prefix index bucketing
// record positions by the first three characters of every word of their
// searchable text. It is built once and never mutated afterwards, so reads
// need no locking.
type Dataset struct {
	records []SearchRecord
	byID    map[int64]int
	prefix  map[string][]int
}

// BuildDataset indexes the given records. The records are expected to be
// normalized already (see gold.Normalize); order is preserved and used as the
// tie-break order for search ranking. A record is indexed under the prefix
// key of each word of its description, brand and category, so a query word
// matching any word of the record finds it through the index.
func BuildDataset(records []SearchRecord) *Dataset {
	ds := &Dataset{
		records: records,
		byID:    make(map[int64]int, len(records)),
		prefix:  make(map[string][]int),
	}
	seen := make(map[string]struct{})
	for i := range records {
		rec := &records[i]
		if _, ok := ds.byID[rec.FdcID]; !ok {
			ds.byID[rec.FdcID] = i
		}

		clear(seen)
		for _, field := range []string{rec.DescriptionLower, rec.BrandLower, rec.CategoryLower} {
			for _, word := range strings.Fields(field) {
				key := PrefixKey(word)
				if key == "" {
					continue
				}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				ds.prefix[key] = append(ds.prefix[key], i)
			}
		}
	}
	return ds
}

// Len returns the number of records in the dataset.
func (d *Dataset) Len() int {
	return len(d.records)
}

// At returns the record at position i in file order.
func (d *Dataset) At(i int) *SearchRecord {
	return &d.records[i]
}

// ByID returns the record with the given fdc_id, or false when unknown.
func (d *Dataset) ByID(fdcID int64) (*SearchRecord, bool) {
	i, ok := d.byID[fdcID]
	if !ok {
		return nil, false
	}
	return &d.records[i], true
}

// PrefixBucket returns the positions, in dataset order, of records with a
// searchable word starting with the given prefix key. A missing bucket
// returns nil.
func (d *Dataset) PrefixBucket(key string) []int {
	return d.prefix[key]
}

// PrefixKey derives the bucket key for a lowercased word. Words shorter than
// PrefixLength have no key.
func PrefixKey(lower string) string {
	runes := []rune(lower)
	if len(runes) < PrefixLength {
		return ""
	}
	return string(runes[:PrefixLength])
}

// Finite returns the pointer unchanged when it holds a finite value, and nil
// for NaN or Inf. Non-finite values must never cross a component boundary.
func Finite(p *float64) *float64 {
	if p == nil {
		return nil
	}
	if math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	return p
}

// Lower trims and lowercases search text in one place so record fields and
// query words agree on normalization.
func Lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
