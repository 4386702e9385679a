package config

import (
	seriesuc "dashboard-refresher/internal/series/core/usecase"
	stats "dashboard-refresher/internal/stats/core/domain"
)

// DefaultLabels returns the built-in category tables.
func DefaultLabels() *Labels {
	return &Labels{
		Products: []string{"AFib", "Cardio", "CnO Pro", "Respiratory", "Tesla"},
		ProductAliases: map[string]string{
			"afib":                "AFib",
			"cardio":              "Cardio",
			"cardio adaptability": "Cardio",
			"cno_pro_n_plus":      "CnO Pro",
			"cno pro":             "CnO Pro",
			"c&o_pro_offering":    "CnO Pro",
			"cno_pro_offering":    "CnO Pro",
			"respiratory_health":  "Respiratory",
			"respiratory":         "Respiratory",
			"respiratoryhealth":   "Respiratory",
			"tesla":               "Tesla",
		},
		Countries: []string{
			"USA", "India", "Canada", "UK + IR", "Australia", "Germany",
			"UAE", "Czech Republic", "Thailand", "Switzerland", "Spain",
			"Netherlands", "Singapore", "Philippines", "France", "Mexico",
			"Poland", "Saudi Arabia", "Austria", "Italy", "Belgium", "New Zealand",
			"Taiwan",
		},
		CountryAliases: map[string]string{
			"united states of america": "USA",
			"united states":            "USA",
			"us":                       "USA",
			"usa":                      "USA",
			"india":                    "India",
			"canada":                   "Canada",
			"united kingdom of great britain and northern ireland": "UK + IR",
			"united kingdom":            "UK + IR",
			"ireland":                   "UK + IR",
			"uk":                        "UK + IR",
			"australia":                 "Australia",
			"germany":                   "Germany",
			"united arab emirates":      "UAE",
			"uae":                       "UAE",
			"czech republic":            "Czech Republic",
			"czechia":                   "Czech Republic",
			"thailand":                  "Thailand",
			"switzerland":               "Switzerland",
			"spain":                     "Spain",
			"netherlands":               "Netherlands",
			"singapore":                 "Singapore",
			"philippines":               "Philippines",
			"france":                    "France",
			"mexico":                    "Mexico",
			"poland":                    "Poland",
			"saudi arabia":              "Saudi Arabia",
			"austria":                   "Austria",
			"italy":                     "Italy",
			"italia":                    "Italy",
			"belgium":                   "Belgium",
			"new zealand":               "New Zealand",
			"taiwan":                    "Taiwan",
			"taiwan, province of china": "Taiwan",
		},
		// cno_pro_n_plus: 7d monthly trial, 30d yearly
		TrialWindows: []seriesuc.TrialWindow{
			{RawProduct: "cno_pro_n_plus", Days: 30},
			{RawProduct: "afib", Days: 7},
			{RawProduct: "cardio", Days: 7},
			{RawProduct: "respiratory", Days: 7},
			{RawProduct: "tesla", Days: 7},
		},
		Static: StaticData{
			Overlap: &stats.OverlapSnapshot{
				TotalUnique: 42162,
				PerPP:       map[string]int{"AFib": 2927, "Cardio": 13003, "CnO Pro": 24179, "Respiratory": 8412, "Tesla": 114},
				Overlap:     map[string]int{"1": 36297, "2": 5281, "3": 561, "4": 22, "5": 1},
				TopCombos: []stats.Combination{
					{Label: "Cardio + CnO Pro", Count: 2007},
					{Label: "Cardio + Respiratory", Count: 1464},
					{Label: "CnO Pro + Respiratory", Count: 931},
					{Label: "Cardio + CnO Pro + Respiratory", Count: 399},
					{Label: "AFib + CnO Pro", Count: 364},
					{Label: "AFib + Respiratory", Count: 321},
					{Label: "AFib + Cardio", Count: 162},
				},
			},
		},
	}
}
