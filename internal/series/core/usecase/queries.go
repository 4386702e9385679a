package usecase

import (
	"fmt"
	"time"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/ports"
)

// Sources names the upstream datasets the usecases read from.
type Sources struct {
	RevenueSource string // daily revenue facts with COUNTRY, e.g. "card__9061"
	TrialSource   string // trial/conversion facts, e.g. "card__19529"
	PurchaseTable string // raw purchases table used by native SQL
}

var (
	fieldCountry       = ports.Field{Name: "COUNTRY", Type: ports.TypeText}
	fieldProduct       = ports.Field{Name: "POWERPLUG_TYPE", Type: ports.TypeText}
	fieldGender        = ports.Field{Name: "GENDER", Type: ports.TypeText}
	fieldAmount        = ports.Field{Name: "AMOUNT_USD", Type: ports.TypeFloat}
	fieldTrialUsers    = ports.Field{Name: "NUM_TRIAL_USERS", Type: ports.TypeInteger}
	fieldConverted     = ports.Field{Name: "SUM_CONVERTED_USERS", Type: ports.TypeInteger}
	fieldPurchaseDate  = ports.Field{Name: "PURCHASE_DATE", Type: ports.TypeDateTime}
	fieldTrialDate     = ports.Field{Name: "TRIAL_DATE", Type: ports.TypeDate}
	fieldPurchaseByDay = ports.Field{Name: "PURCHASE_DATE", Type: ports.TypeDateTime, TemporalUnit: "day"}
	fieldTrialByDay    = ports.Field{Name: "TRIAL_DATE", Type: ports.TypeDate, TemporalUnit: "day"}
)

// Rows: [COUNTRY, POWERPLUG_TYPE, PURCHASE_DATE, SUM(AMOUNT_USD), COUNT]
func countryRevenueQuery(src string, w Window) ports.Query {
	return ports.Query{
		Name:         "country_revenue",
		Source:       src,
		Aggregations: []ports.Aggregation{ports.Sum(fieldAmount), ports.CountRows()},
		Breakouts:    []ports.Field{fieldCountry, fieldProduct, fieldPurchaseByDay},
		Filters:      []ports.Filter{ports.Between(fieldPurchaseDate, w.From(), w.To())},
	}
}

// Rows: [POWERPLUG_TYPE, TRIAL_DATE, SUM(NUM_TRIAL_USERS), SUM(SUM_CONVERTED_USERS)]
func trialQuery(src string, w Window) ports.Query {
	return ports.Query{
		Name:         "trials",
		Source:       src,
		Aggregations: []ports.Aggregation{ports.Sum(fieldTrialUsers), ports.Sum(fieldConverted)},
		Breakouts:    []ports.Field{fieldProduct, fieldTrialByDay},
		Filters:      []ports.Filter{ports.Between(fieldTrialDate, w.From(), w.To())},
	}
}

// Rows: [POWERPLUG_TYPE, COUNTRY, SUM(NUM_TRIAL_USERS), SUM(SUM_CONVERTED_USERS)]
func activeTrialsQuery(src, rawProduct string, days int) ports.Query {
	return ports.Query{
		Name:         "active_trials",
		Source:       src,
		Aggregations: []ports.Aggregation{ports.Sum(fieldTrialUsers), ports.Sum(fieldConverted)},
		Breakouts:    []ports.Field{fieldProduct, fieldCountry},
		Filters: []ports.Filter{
			ports.Equals(fieldProduct, rawProduct),
			ports.WithinDays(fieldTrialDate, days),
		},
	}
}

// Rows: [POWERPLUG_TYPE, COUNTRY, GENDER, SUM(NUM_TRIAL_USERS)]
func genderQuery(src string, start, today time.Time) ports.Query {
	return ports.Query{
		Name:         "gender_split",
		Source:       src,
		Aggregations: []ports.Aggregation{ports.Sum(fieldTrialUsers)},
		Breakouts:    []ports.Field{fieldProduct, fieldCountry, fieldGender},
		Filters:      []ports.Filter{ports.Between(fieldTrialDate, domain.DateKey(start), domain.DateKey(today))},
	}
}

// productCase maps raw plan names to product display names in SQL. The result
// still goes through the label normalizer, which treats display names as
// aliases of themselves.
const productCase = `CASE
      WHEN POWERPLUG_PLAN LIKE 'AFib%%' THEN 'AFib'
      WHEN POWERPLUG_PLAN LIKE 'Cardio%%' THEN 'Cardio'
      WHEN POWERPLUG_PLAN LIKE 'CnO%%' OR POWERPLUG_PLAN LIKE 'cno%%' THEN 'CnO Pro'
      WHEN POWERPLUG_PLAN LIKE 'respiratory%%' OR POWERPLUG_PLAN LIKE 'Respiratory%%' THEN 'Respiratory'
      WHEN POWERPLUG_PLAN LIKE 'tesla%%' OR POWERPLUG_PLAN LIKE 'Tesla%%' THEN 'Tesla'
      ELSE NULL
    END`

const activeWindowCase = `CASE
      WHEN POWERPLUG_PLAN LIKE '%%-monthly' THEN 35
      WHEN POWERPLUG_PLAN LIKE '%%-yearly' OR POWERPLUG_PLAN LIKE '%%-1 year' THEN 370
      WHEN POWERPLUG_PLAN LIKE '%%-2 year%%' THEN 740
      ELSE 35
    END`

const planTypeCase = `CASE
      WHEN POWERPLUG_PLAN LIKE '%%-monthly' THEN 'Monthly'
      WHEN POWERPLUG_PLAN LIKE '%%-yearly' OR POWERPLUG_PLAN LIKE '%%-1 year' THEN 'Yearly'
      WHEN POWERPLUG_PLAN LIKE '%%-2 year%%' THEN '2-Year'
      ELSE 'Other'
    END`

// activePaidCTE selects (EMAIL, PP) for users whose last purchase is still
// inside their plan's active window.
func activePaidCTE(table string) string {
	return fmt.Sprintf(`user_latest AS (
  SELECT
    EMAIL,
    `+productCase+` AS PP,
    `+activeWindowCase+` AS active_window_days,
    MAX(CAST(PURCHASE_DATE AS DATE)) AS last_purchase
  FROM "%s"
  WHERE PRODUCT_CATEGORY = 'powerplug'
    AND POWERPLUG_PLAN IS NOT NULL
  GROUP BY 1, 2, 3
),
active_paid AS (
  SELECT EMAIL, PP
  FROM user_latest
  WHERE PP IS NOT NULL
    AND last_purchase >= CURRENT_DATE - active_window_days
)`, table)
}

// Rows: [EMAIL, PP]
func activeMembershipsQuery(table string) ports.Query {
	return ports.Query{
		Name:   "active_memberships",
		Native: "WITH " + activePaidCTE(table) + "\nSELECT EMAIL, PP FROM active_paid ORDER BY EMAIL, PP",
	}
}

// Rows: [COUNTRY, PP, COUNT(DISTINCT EMAIL)]
func activePaidByCountryQuery(table string) ports.Query {
	return ports.Query{
		Name: "active_paid_by_country",
		Native: `WITH uid_map AS (
  SELECT DISTINCT "original_user_id" AS uid, "id" AS user_id, "email"
  FROM "users"
  WHERE "original_user_id" IS NOT NULL
),
geo_ranked AS (
  SELECT bb.user_id, bb."email",
    COALESCE(d."name", f.COUNTRY) AS country_name,
    ROW_NUMBER() OVER (PARTITION BY bb.user_id ORDER BY f."TIMESTAMP" DESC) AS rn
  FROM "geo_data_nr_mp" f
  LEFT JOIN uid_map bb ON bb.uid = f."USER_ID"
  LEFT JOIN "country_code_mapping" d ON f.COUNTRY = d."country_code"
),
geo AS (
  SELECT user_id, "email", country_name FROM geo_ranked WHERE rn = 1
),
` + activePaidCTE(table) + `
SELECT COALESCE(g.country_name, 'Unknown') AS country, ap.PP,
       COUNT(DISTINCT ap.EMAIL) AS active_paid
FROM active_paid ap
LEFT JOIN geo g ON LOWER(ap.EMAIL) = LOWER(g."email")
GROUP BY 1, 2
ORDER BY 1, 2`,
	}
}

// Rows: [EMAIL, PP, first purchase month YYYY-MM]
func firstPurchaseQuery(table string, start, today time.Time) ports.Query {
	return ports.Query{
		Name: "first_purchases",
		Native: fmt.Sprintf(`SELECT
  EMAIL,
  `+productCase+` AS PP,
  TO_CHAR(MIN(CAST(PURCHASE_DATE AS DATE)), 'YYYY-MM') AS first_month
FROM "%s"
WHERE PRODUCT_CATEGORY = 'powerplug'
  AND CAST(PURCHASE_DATE AS DATE) >= '%s'
  AND CAST(PURCHASE_DATE AS DATE) <= '%s'
  AND POWERPLUG_PLAN IS NOT NULL
GROUP BY 1, 2
ORDER BY 3, 1`, table, domain.DateKey(start), domain.DateKey(today)),
	}
}

// Rows: [MONTH, PP, PLAN_TYPE, ROUND(SUM(AMOUNT_USD), 2), COUNT]
func planMixQuery(table string, start, today time.Time) ports.Query {
	return ports.Query{
		Name: "plan_mix",
		Native: fmt.Sprintf(`SELECT
  TO_CHAR(CAST(PURCHASE_DATE AS DATE), 'YYYY-MM') AS month,
  `+productCase+` AS pp,
  `+planTypeCase+` AS plan_type,
  ROUND(SUM(AMOUNT_USD), 2) AS revenue,
  COUNT(*) AS purchases
FROM "%s"
WHERE PRODUCT_CATEGORY = 'powerplug'
  AND CAST(PURCHASE_DATE AS DATE) >= '%s'
  AND CAST(PURCHASE_DATE AS DATE) <= '%s'
GROUP BY 1, 2, 3
ORDER BY 1, 2, 3`, table, domain.DateKey(start), domain.DateKey(today)),
	}
}
