package domain

// Storage basis values for a food record. Gold rows produced from the USDA
// medallion are per-100-grams unless the source declared a volume serving.
const (
	BasisPer100G  = "per_100g"
	BasisPer100ML = "per_100ml"
)

// Unit categories derived from the storage basis
const (
	UnitCategoryMass   = "mass"
	UnitCategoryVolume = "volume"
)

// SearchRecord is one row of the gold food-search table, augmented with the
// derived fields the in-memory engine needs (lowercased text, prefix bucket
// key, per-gram macro coefficients). Records are immutable after load.
type SearchRecord struct {
	FdcID               int64   `json:"fdc_id"`
	Description         string  `json:"description"`
	BrandOwner          string  `json:"brand_owner,omitempty"`
	CategoryDescription string  `json:"category_description,omitempty"`
	ServingSize         float64 `json:"serving_size"`
	ServingSizeUnit     string  `json:"serving_size_unit"`
	Kcal                *float64 `json:"kcal"`
	ProteinG            *float64 `json:"protein_g"`
	FatG                *float64 `json:"fat_g"`
	CarbG               *float64 `json:"carb_g"`
	PublicationDate     string  `json:"publication_date,omitempty"`
	DataType            string  `json:"data_type,omitempty"`
	GtinUPC             string  `json:"gtin_upc,omitempty"`
	Ingredients         string  `json:"ingredients,omitempty"`
	HouseholdServing    string  `json:"household_serving_fulltext,omitempty"`
	BrandedFoodCategory string  `json:"branded_food_category,omitempty"`

	// Basis records whether macros are stored per 100 g or per 100 ml.
	Basis string `json:"basis,omitempty"`

	// Per-gram coefficients, derived from the per-100 macros when the gold
	// file does not carry them. Nil when not computable (volume basis,
	// missing macro).
	KcalPerG    *float64 `json:"kcal_per_g"`
	ProteinPerG *float64 `json:"protein_per_g"`
	FatPerG     *float64 `json:"fat_per_g"`
	CarbPerG    *float64 `json:"carb_per_g"`

	// Lowercased search text, computed once at load so query scoring and
	// prefix indexing agree on normalization.
	DescriptionLower string `json:"-"`
	BrandLower       string `json:"-"`
	CategoryLower    string `json:"-"`
}

// SearchResult is a SearchRecord as returned from a search call, optionally
// carrying the micronutrient panel when the caller asked for it.
type SearchResult struct {
	SearchRecord
	Micronutrients map[string]MicronutrientEntry `json:"micronutrients,omitempty"`
}

// MicronutrientEntry is one nutrient in a detail or search response.
type MicronutrientEntry struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit,omitempty"`
	Label  string  `json:"label"`
}

// NutrientRef identifies one nutrient in the catalog (distinct name + unit).
type NutrientRef struct {
	Name string
	Unit string
}

// NutrientAmount is a measured amount of one nutrient for one food.
type NutrientAmount struct {
	Name   string
	Unit   string
	Amount float64
}

// PerHundred carries macros normalized to a 100 g / 100 ml serving.
type PerHundred struct {
	Unit     string   `json:"unit"`
	Amount   float64  `json:"amount"`
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
}

// PerGram carries per-gram macro coefficients. A field is nil when it was
// never computable for the record; it is never NaN or Inf.
type PerGram struct {
	Kcal    *float64 `json:"kcal"`
	Protein *float64 `json:"protein"`
	Fat     *float64 `json:"fat"`
	Carb    *float64 `json:"carb"`
}

// FoodDetail is the full nutrition detail for a single food.
type FoodDetail struct {
	FdcID           int64    `json:"fdc_id"`
	Description     string   `json:"description"`
	BrandOwner      string   `json:"brand_owner,omitempty"`
	DataType        string   `json:"data_type,omitempty"`
	GtinUPC         string   `json:"gtin_upc,omitempty"`
	ServingSize     float64  `json:"serving_size"`
	ServingSizeUnit string   `json:"serving_size_unit"`
	Ingredients     string   `json:"ingredients,omitempty"`
	Kcal            *float64 `json:"kcal"`
	ProteinG        *float64 `json:"protein_g"`
	FatG            *float64 `json:"fat_g"`
	CarbG           *float64 `json:"carb_g"`

	// UnitCategory is "mass" for per-100g records and "volume" for
	// per-100ml records, derived from the stored basis.
	UnitCategory string `json:"unit_category"`

	Per100  PerHundred `json:"per_100"`
	PerGram *PerGram   `json:"per_gram,omitempty"`

	Micronutrients map[string]MicronutrientEntry `json:"micronutrients,omitempty"`
}

// UnitCategoryForBasis maps a storage basis to its unit category.
func UnitCategoryForBasis(basis string) string {
	if basis == BasisPer100ML {
		return UnitCategoryVolume
	}
	return UnitCategoryMass
}
