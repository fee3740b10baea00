package medallion

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/pkang0831/fromFatToFit/internal/infrastructure/duckdb"
)

// Bronze tables the silver stage reads. Joins are by surrogate key only and
// always left joins: a fact row with an unresolvable foreign key keeps
// null-filled dimension fields instead of being dropped.
var silverInputs = []string{
	"food", "branded_food", "foundation_food", "sr_legacy_food",
	"food_category", "wweia_food_category", "survey_fndds_food",
	"agricultural_samples", "market_acquisition",
	"food_attribute", "food_attribute_type", "food_update_log_entry",
	"microbe",
	"food_nutrient", "nutrient", "food_nutrient_derivation",
	"sub_sample_result", "lab_method", "lab_method_code",
	"food_portion", "measure_unit", "food_component", "input_food",
	"retention_factor", "food_nutrient_conversion_factor",
	"food_calorie_conversion_factor", "food_protein_conversion_factor",
}

var silverOutputs = []string{
	"food_core", "food_attributes", "food_nutrients", "food_portions",
}

// StageSilver condenses the bronze USDA entity graph into four
// analytics-friendly nested tables and exports each as zstd Parquet.
func StageSilver(ctx context.Context, db *duckdb.DB, bronzeDir, silverDir string, rebuild bool) error {
	log.Printf("[SILVER] Building enriched tables")

	if !rebuild && allExist(silverDir, silverOutputs) {
		log.Printf("[SILVER] Outputs already present; skipping (use --rebuild to regenerate)")
		return nil
	}
	if err := ensureDir(silverDir, rebuild); err != nil {
		return err
	}

	inputs := make(map[string]string, len(silverInputs))
	required := make([]string, 0, len(silverInputs))
	for _, name := range silverInputs {
		path := filepath.Join(bronzeDir, name+".parquet")
		inputs[name] = duckdb.QuotePath(path)
		required = append(required, path)
	}
	if err := requireFiles(required...); err != nil {
		return err
	}

	builders := []struct {
		table string
		query string
	}{
		{"silver_food_core", foodCoreSQL(inputs)},
		{"silver_food_attributes", foodAttributesSQL(inputs)},
		{"silver_food_nutrients", foodNutrientsSQL(inputs)},
		{"silver_food_portions", foodPortionsSQL(inputs)},
	}

	for _, b := range builders {
		log.Printf("[SILVER] -> %s", b.table)
		if err := db.Exec(ctx, b.query); err != nil {
			return fmt.Errorf("building %s: %w", b.table, err)
		}
		rows, err := db.Count(ctx, b.table)
		if err != nil {
			return err
		}
		log.Printf("[SILVER] %s: %s rows", b.table, humanize.Comma(rows))
	}

	for i, out := range silverOutputs {
		target := filepath.Join(silverDir, out+".parquet")
		log.Printf("[SILVER] Exporting %s", target)
		query := fmt.Sprintf(
			"COPY %s TO '%s' (FORMAT PARQUET, COMPRESSION ZSTD);",
			builders[i].table, duckdb.QuotePath(target))
		if err := db.Exec(ctx, query); err != nil {
			return fmt.Errorf("exporting %s: %w", out, err)
		}
	}
	return nil
}

func allExist(dir string, names []string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name+".parquet")); err != nil {
			return false
		}
	}
	return true
}

// foodCoreSQL builds one row per fdc_id with nested detail structs for the
// food's data type and grouped lists for survey, agricultural and market
// child rows. Foods with no child rows keep the list columns null.
func foodCoreSQL(in map[string]string) string {
	return fmt.Sprintf(`
	CREATE OR REPLACE TABLE silver_food_core AS
	WITH food_base AS (
	  SELECT
	    try_cast(fdc_id AS BIGINT) AS fdc_id,
	    data_type,
	    description,
	    try_cast(NULLIF(CAST(food_category_id AS VARCHAR), '') AS BIGINT) AS food_category_id,
	    publication_date
	  FROM read_parquet('%[1]s')
	),
	category_dim AS (
	  SELECT
	    try_cast(id AS BIGINT) AS id,
	    description AS category_description
	  FROM read_parquet('%[2]s')
	),
	branded AS (
	  SELECT
	    try_cast(fdc_id AS BIGINT) AS fdc_id,
	    struct_pack(
	      brand_owner := brand_owner,
	      brand_name := brand_name,
	      subbrand_name := subbrand_name,
	      gtin_upc := CAST(gtin_upc AS VARCHAR),
	      data_source := data_source,
	      package_weight := package_weight,
	      serving_size := try_cast(serving_size AS DOUBLE),
	      serving_size_unit := serving_size_unit,
	      household_serving_fulltext := household_serving_fulltext,
	      branded_food_category := branded_food_category,
	      market_country := market_country,
	      available_date := available_date,
	      discontinued_date := discontinued_date,
	      preparation_state_code := preparation_state_code,
	      trade_channel := trade_channel,
	      short_description := short_description,
	      material_code := material_code,
	      ingredients := ingredients,
	      not_a_significant_source_of := not_a_significant_source_of
	    ) AS branded_detail
	  FROM read_parquet('%[3]s')
	),
	foundation AS (
	  SELECT
	    try_cast(fdc_id AS BIGINT) AS fdc_id,
	    struct_pack(
	      ndb_number := try_cast(NDB_number AS BIGINT),
	      footnote := footnote
	    ) AS foundation_detail
	  FROM read_parquet('%[4]s')
	),
	sr_legacy AS (
	  SELECT
	    try_cast(fdc_id AS BIGINT) AS fdc_id,
	    struct_pack(
	      ndb_number := try_cast(NDB_number AS BIGINT)
	    ) AS sr_legacy_detail
	  FROM read_parquet('%[5]s')
	),
	wweia AS (
	  SELECT
	    try_cast(wweia_food_category AS BIGINT) AS wweia_food_category,
	    wweia_food_category_description
	  FROM read_parquet('%[6]s')
	),
	survey AS (
	  SELECT
	    try_cast(s.fdc_id AS BIGINT) AS fdc_id,
	    LIST(
	      struct_pack(
	        food_code := try_cast(s.food_code AS BIGINT),
	        wweia_category_code := try_cast(s.wweia_category_code AS BIGINT),
	        wweia_category_description := w.wweia_food_category_description,
	        start_date := s.start_date,
	        end_date := s.end_date
	      )
	    ) AS survey_items
	  FROM read_parquet('%[7]s') s
	  LEFT JOIN wweia w ON w.wweia_food_category = try_cast(s.wweia_category_code AS BIGINT)
	  WHERE s.fdc_id IS NOT NULL
	  GROUP BY s.fdc_id
	),
	agricultural AS (
	  SELECT
	    try_cast(fdc_id AS BIGINT) AS fdc_id,
	    LIST(
	      struct_pack(
	        acquisition_date := acquisition_date,
	        market_class := market_class,
	        treatment := treatment,
	        state := state
	      )
	    ) AS agricultural_samples
	  FROM read_parquet('%[8]s')
	  WHERE fdc_id IS NOT NULL
	  GROUP BY fdc_id
	),
	market AS (
	  SELECT
	    try_cast(fdc_id AS BIGINT) AS fdc_id,
	    LIST(
	      struct_pack(
	        brand_description := brand_description,
	        acquisition_date := acquisition_date,
	        expiration_date := expiration_date,
	        label_weight := label_weight,
	        location := location,
	        sales_type := sales_type,
	        sample_lot_nbr := sample_lot_nbr,
	        sell_by_date := sell_by_date,
	        store_city := store_city,
	        store_name := store_name,
	        store_state := store_state,
	        upc_code := upc_code
	      )
	    ) AS market_acquisitions
	  FROM read_parquet('%[9]s')
	  WHERE fdc_id IS NOT NULL
	  GROUP BY fdc_id
	)
	SELECT
	  fb.fdc_id,
	  fb.data_type,
	  fb.description,
	  struct_pack(
	    id := fb.food_category_id,
	    description := cat.category_description
	  ) AS category,
	  fb.publication_date,
	  branded.branded_detail,
	  foundation.foundation_detail,
	  sr_legacy.sr_legacy_detail,
	  survey.survey_items,
	  agricultural.agricultural_samples,
	  market.market_acquisitions
	FROM food_base fb
	LEFT JOIN category_dim cat ON cat.id = fb.food_category_id
	LEFT JOIN branded ON branded.fdc_id = fb.fdc_id
	LEFT JOIN foundation ON foundation.fdc_id = fb.fdc_id
	LEFT JOIN sr_legacy ON sr_legacy.fdc_id = fb.fdc_id
	LEFT JOIN survey ON survey.fdc_id = fb.fdc_id
	LEFT JOIN agricultural ON agricultural.fdc_id = fb.fdc_id
	LEFT JOIN market ON market.fdc_id = fb.fdc_id;`,
		in["food"], in["food_category"], in["branded_food"],
		in["foundation_food"], in["sr_legacy_food"], in["wweia_food_category"],
		in["survey_fndds_food"], in["agricultural_samples"], in["market_acquisition"])
}

// foodAttributesSQL collects free-form attributes and microbiological tests
// per food. Many foods have neither; the full outer join keeps a row when
// either side is present.
func foodAttributesSQL(in map[string]string) string {
	return fmt.Sprintf(`
	CREATE OR REPLACE TABLE silver_food_attributes AS
	WITH attribute_types AS (
	  SELECT
	    try_cast(id AS BIGINT) AS id,
	    name,
	    description
	  FROM read_parquet('%[1]s')
	),
	update_logs AS (
	  SELECT
	    try_cast(id AS BIGINT) AS id,
	    description,
	    last_updated
	  FROM read_parquet('%[2]s')
	),
	attributes AS (
	  SELECT
	    try_cast(fa.fdc_id AS BIGINT) AS fdc_id,
	    LIST(
	      struct_pack(
	        attribute_id := try_cast(fa.id AS BIGINT),
	        seq_num := try_cast(NULLIF(CAST(fa.seq_num AS VARCHAR), '') AS BIGINT),
	        name := fa.name,
	        value := NULLIF(TRIM(CAST(fa.value AS VARCHAR)), ''),
	        type := struct_pack(
	          id := try_cast(NULLIF(CAST(fa.food_attribute_type_id AS VARCHAR), '') AS BIGINT),
	          name := attr_type.name,
	          description := attr_type.description
	        ),
	        update_log := CASE
	          WHEN attr_type.name = 'Update Log' THEN struct_pack(
	            log_id := CASE
	              WHEN regexp_full_match(TRIM(CAST(fa.value AS VARCHAR)), '^[0-9]+$')
	              THEN CAST(TRIM(CAST(fa.value AS VARCHAR)) AS BIGINT)
	            END,
	            description := ul.description,
	            last_updated := ul.last_updated
	          )
	        END
	      )
	    ) AS attributes
	  FROM read_parquet('%[3]s') fa
	  LEFT JOIN attribute_types attr_type
	    ON attr_type.id = try_cast(NULLIF(CAST(fa.food_attribute_type_id AS VARCHAR), '') AS BIGINT)
	  LEFT JOIN update_logs ul ON ul.id = CASE
	    WHEN regexp_full_match(TRIM(CAST(fa.value AS VARCHAR)), '^[0-9]+$')
	    THEN CAST(TRIM(CAST(fa.value AS VARCHAR)) AS BIGINT)
	  END
	  WHERE fa.fdc_id IS NOT NULL
	  GROUP BY fa.fdc_id
	),
	microbes AS (
	  SELECT
	    try_cast(foodId AS BIGINT) AS fdc_id,
	    LIST(
	      struct_pack(
	        microbe_id := try_cast(id AS BIGINT),
	        method := method,
	        microbe_code := microbe_code,
	        min_value := try_cast(min_value AS DOUBLE),
	        max_value := max_value,
	        uom := uom
	      )
	    ) AS microbiological_tests
	  FROM read_parquet('%[4]s')
	  WHERE foodId IS NOT NULL
	  GROUP BY foodId
	)
	SELECT
	  COALESCE(attr.fdc_id, micro.fdc_id) AS fdc_id,
	  attr.attributes,
	  micro.microbiological_tests
	FROM attributes attr
	FULL OUTER JOIN microbes micro ON micro.fdc_id = attr.fdc_id;`,
		in["food_attribute_type"], in["food_update_log_entry"],
		in["food_attribute"], in["microbe"])
}

// foodNutrientsSQL is the append-only measurement fact table: one row per
// (fdc_id, nutrient_id) measurement with derivation and lab provenance.
// Nutrient identity joins on surrogate id, never on name.
func foodNutrientsSQL(in map[string]string) string {
	return fmt.Sprintf(`
	CREATE OR REPLACE TABLE silver_food_nutrients AS
	WITH nutrient_dim AS (
	  SELECT
	    try_cast(id AS BIGINT) AS id,
	    struct_pack(
	      name := name,
	      unit_name := unit_name,
	      nutrient_nbr := try_cast(nutrient_nbr AS DOUBLE),
	      rank := rank
	    ) AS nutrient_info
	  FROM read_parquet('%[1]s')
	),
	derivation_dim AS (
	  SELECT
	    try_cast(id AS BIGINT) AS id,
	    struct_pack(
	      code := code,
	      description := description
	    ) AS derivation_info
	  FROM read_parquet('%[2]s')
	),
	lab_method_codes AS (
	  SELECT
	    try_cast(lab_method_id AS BIGINT) AS lab_method_id,
	    LIST(code) AS codes
	  FROM read_parquet('%[3]s')
	  WHERE lab_method_id IS NOT NULL
	  GROUP BY lab_method_id
	),
	lab_methods AS (
	  SELECT
	    try_cast(id AS BIGINT) AS id,
	    description,
	    technique,
	    lmc.codes
	  FROM read_parquet('%[4]s') lm
	  LEFT JOIN lab_method_codes lmc ON lmc.lab_method_id = try_cast(lm.id AS BIGINT)
	),
	sub_samples AS (
	  SELECT
	    try_cast(ss.food_nutrient_id AS BIGINT) AS food_nutrient_id,
	    LIST(
	      struct_pack(
	        lab_method_id := try_cast(ss.lab_method_id AS BIGINT),
	        nutrient_name := ss.nutrient_name,
	        adjusted_amount := ss.adjusted_amount,
	        lab_method := struct_pack(
	          description := lm.description,
	          technique := lm.technique,
	          codes := lm.codes
	        )
	      )
	    ) AS lab_measurements
	  FROM read_parquet('%[5]s') ss
	  LEFT JOIN lab_methods lm ON lm.id = try_cast(ss.lab_method_id AS BIGINT)
	  WHERE ss.food_nutrient_id IS NOT NULL
	  GROUP BY ss.food_nutrient_id
	),
	base AS (
	  SELECT
	    try_cast(id AS BIGINT) AS food_nutrient_id,
	    try_cast(fdc_id AS BIGINT) AS fdc_id,
	    try_cast(nutrient_id AS BIGINT) AS nutrient_id,
	    try_cast(amount AS DOUBLE) AS amount,
	    data_points,
	    try_cast(derivation_id AS BIGINT) AS derivation_id,
	    min,
	    max,
	    median,
	    loq,
	    footnote,
	    min_year_acquired,
	    percent_daily_value
	  FROM read_parquet('%[6]s')
	)
	SELECT
	  base.food_nutrient_id,
	  base.fdc_id,
	  base.nutrient_id,
	  base.amount,
	  base.data_points,
	  base.min,
	  base.max,
	  base.median,
	  base.loq,
	  base.footnote,
	  base.min_year_acquired,
	  base.percent_daily_value,
	  nutrient_dim.nutrient_info,
	  derivation_dim.derivation_info,
	  sub_samples.lab_measurements
	FROM base
	LEFT JOIN nutrient_dim ON nutrient_dim.id = base.nutrient_id
	LEFT JOIN derivation_dim ON derivation_dim.id = base.derivation_id
	LEFT JOIN sub_samples ON sub_samples.food_nutrient_id = base.food_nutrient_id;`,
		in["nutrient"], in["food_nutrient_derivation"], in["lab_method_code"],
		in["lab_method"], in["sub_sample_result"], in["food_nutrient"])
}

// foodPortionsSQL groups serving conversions, component decomposition,
// ingredient inputs and conversion coefficients per food. The fdc index
// unions all four sources so a food appearing in only one still gets a row.
func foodPortionsSQL(in map[string]string) string {
	return fmt.Sprintf(`
	CREATE OR REPLACE TABLE silver_food_portions AS
	WITH measure_units AS (
	  SELECT
	    try_cast(id AS BIGINT) AS id,
	    name
	  FROM read_parquet('%[1]s')
	),
	portions AS (
	  SELECT
	    try_cast(fp.fdc_id AS BIGINT) AS fdc_id,
	    LIST(
	      struct_pack(
	        portion_id := try_cast(fp.id AS BIGINT),
	        seq_num := try_cast(fp.seq_num AS BIGINT),
	        amount := try_cast(fp.amount AS DOUBLE),
	        measure := struct_pack(
	          id := try_cast(fp.measure_unit_id AS BIGINT),
	          name := mu.name
	        ),
	        portion_description := fp.portion_description,
	        modifier := fp.modifier,
	        gram_weight := try_cast(fp.gram_weight AS DOUBLE),
	        data_points := fp.data_points,
	        footnote := fp.footnote,
	        min_year_acquired := fp.min_year_acquired
	      )
	    ) AS portions
	  FROM read_parquet('%[2]s') fp
	  LEFT JOIN measure_units mu ON mu.id = try_cast(fp.measure_unit_id AS BIGINT)
	  WHERE fp.fdc_id IS NOT NULL
	  GROUP BY fp.fdc_id
	),
	components AS (
	  SELECT
	    try_cast(fc.fdc_id AS BIGINT) AS fdc_id,
	    LIST(
	      struct_pack(
	        component_id := try_cast(fc.id AS BIGINT),
	        name := fc.name,
	        pct_weight := fc.pct_weight,
	        is_refuse := fc.is_refuse,
	        gram_weight := try_cast(fc.gram_weight AS DOUBLE),
	        data_points := try_cast(fc.data_points AS BIGINT),
	        min_year_acquired := fc.min_year_acquired
	      )
	    ) AS components
	  FROM read_parquet('%[3]s') fc
	  WHERE fc.fdc_id IS NOT NULL
	  GROUP BY fc.fdc_id
	),
	retention_dim AS (
	  SELECT
	    try_cast("n.code" AS BIGINT) AS retention_code,
	    struct_pack(
	      gid := try_cast("n.gid" AS BIGINT),
	      food_group_id := try_cast("n.foodGroupId" AS BIGINT),
	      description := "n.description"
	    ) AS retention_info
	  FROM read_parquet('%[4]s')
	),
	input_foods AS (
	  SELECT
	    try_cast(ifd.fdc_id AS BIGINT) AS fdc_id,
	    LIST(
	      struct_pack(
	        input_food_id := try_cast(ifd.id AS BIGINT),
	        seq_num := try_cast(ifd.seq_num AS BIGINT),
	        amount := try_cast(ifd.amount AS DOUBLE),
	        sr_code := try_cast(ifd.sr_code AS BIGINT),
	        sr_description := ifd.sr_description,
	        unit := ifd.unit,
	        portion_code := try_cast(ifd.portion_code AS BIGINT),
	        portion_description := ifd.portion_description,
	        gram_weight := try_cast(ifd.gram_weight AS DOUBLE),
	        retention_code := try_cast(ifd.retention_code AS BIGINT),
	        retention := retention_dim.retention_info
	      )
	    ) AS input_foods
	  FROM read_parquet('%[5]s') ifd
	  LEFT JOIN retention_dim ON retention_dim.retention_code = try_cast(ifd.retention_code AS BIGINT)
	  WHERE ifd.fdc_id IS NOT NULL
	  GROUP BY ifd.fdc_id
	),
	calorie_factors AS (
	  SELECT
	    try_cast(food_nutrient_conversion_factor_id AS BIGINT) AS conversion_factor_id,
	    struct_pack(
	      protein_value := try_cast(protein_value AS DOUBLE),
	      fat_value := try_cast(fat_value AS DOUBLE),
	      carbohydrate_value := try_cast(carbohydrate_value AS DOUBLE)
	    ) AS calorie_values
	  FROM read_parquet('%[6]s')
	),
	protein_factors AS (
	  SELECT
	    try_cast(food_nutrient_conversion_factor_id AS BIGINT) AS conversion_factor_id,
	    try_cast(value AS DOUBLE) AS protein_value
	  FROM read_parquet('%[7]s')
	),
	conversion_base AS (
	  SELECT
	    try_cast(id AS BIGINT) AS conversion_factor_id,
	    try_cast(fdc_id AS BIGINT) AS fdc_id
	  FROM read_parquet('%[8]s')
	),
	conversion_agg AS (
	  SELECT
	    cb.fdc_id,
	    LIST(
	      struct_pack(
	        conversion_factor_id := cb.conversion_factor_id,
	        calorie_factors := cf.calorie_values,
	        protein_factor := pf.protein_value
	      )
	    ) AS conversion_factors
	  FROM conversion_base cb
	  LEFT JOIN calorie_factors cf ON cf.conversion_factor_id = cb.conversion_factor_id
	  LEFT JOIN protein_factors pf ON pf.conversion_factor_id = cb.conversion_factor_id
	  WHERE cb.fdc_id IS NOT NULL
	  GROUP BY cb.fdc_id
	),
	fdc_index AS (
	  SELECT DISTINCT fdc_id FROM portions
	  UNION
	  SELECT DISTINCT fdc_id FROM components
	  UNION
	  SELECT DISTINCT fdc_id FROM input_foods
	  UNION
	  SELECT DISTINCT fdc_id FROM conversion_agg
	)
	SELECT
	  fk.fdc_id,
	  portions.portions,
	  components.components,
	  input_foods.input_foods,
	  conversion_agg.conversion_factors
	FROM fdc_index fk
	LEFT JOIN portions ON portions.fdc_id = fk.fdc_id
	LEFT JOIN components ON components.fdc_id = fk.fdc_id
	LEFT JOIN input_foods ON input_foods.fdc_id = fk.fdc_id
	LEFT JOIN conversion_agg ON conversion_agg.fdc_id = fk.fdc_id;`,
		in["measure_unit"], in["food_portion"], in["food_component"],
		in["retention_factor"], in["input_food"],
		in["food_calorie_conversion_factor"], in["food_protein_conversion_factor"],
		in["food_nutrient_conversion_factor"])
}
