package instrument

import "strconv"

// Locale tags used by the built-in catalog.
const (
	LocaleFR = "fr"
	LocaleEN = "en"
)

// Canonical codes of the built-in instruments.
const (
	CodeGAD7  = "GAD-7"
	CodePHQ9  = "PHQ-9"
	CodeWHO5  = "WHO-5"
	CodeAAQ2  = "AAQ-II"
	CodePSS10 = "PSS-10"
	CodeISI   = "ISI"
)

// Catalog returns fresh definitions of the built-in instruments.
func Catalog() []Instrument {
	return []Instrument{
		{
			Code:   CodeGAD7,
			Name:   "Generalized Anxiety Disorder 7",
			Locale: LocaleFR,
			Items:  likert(7, 0, 3),
			Bands: []Band{
				band(0, 4, "minimal", "Anxiété minimale", "Minimal anxiety"),
				band(5, 9, "mild", "Anxiété légère", "Mild anxiety"),
				band(10, 14, "moderate", "Anxiété modérée", "Moderate anxiety"),
				band(15, 21, "severe", "Anxiété sévère", "Severe anxiety"),
			},
		},
		{
			Code:   CodePHQ9,
			Name:   "Patient Health Questionnaire 9",
			Locale: LocaleFR,
			Items:  likert(9, 0, 3),
			Bands: []Band{
				band(0, 4, "minimal", "Dépression minimale", "Minimal depression"),
				band(5, 9, "mild", "Dépression légère", "Mild depression"),
				band(10, 14, "moderate", "Dépression modérée", "Moderate depression"),
				band(15, 19, "moderately_severe", "Dépression modérément sévère", "Moderately severe depression"),
				band(20, 27, "severe", "Dépression sévère", "Severe depression"),
			},
		},
		{
			Code:   CodeWHO5,
			Name:   "WHO-5 Well-Being Index",
			Locale: LocaleFR,
			Items:  likert(5, 0, 5),
			Bands: []Band{
				band(0, 7, "very_low", "Bien-être très faible", "Very low well-being"),
				band(8, 12, "low", "Bien-être faible", "Low well-being"),
				band(13, 25, "adequate", "Bien-être satisfaisant", "Adequate well-being"),
			},
		},
		{
			Code:   CodeAAQ2,
			Name:   "Acceptance and Action Questionnaire II",
			Locale: LocaleFR,
			Items:  likert(7, 1, 7),
			Bands: []Band{
				band(7, 17, "flexible", "Flexibilité psychologique", "Psychological flexibility"),
				band(18, 23, "moderate", "Inflexibilité psychologique modérée", "Moderate psychological inflexibility"),
				band(24, 49, "high", "Inflexibilité psychologique élevée", "High psychological inflexibility"),
			},
		},
		{
			Code:   CodePSS10,
			Name:   "Perceived Stress Scale 10",
			Locale: LocaleFR,
			Items:  likert(10, 0, 4, "4", "5", "7", "8"),
			Bands: []Band{
				band(0, 13, "low", "Stress faible", "Low stress"),
				band(14, 26, "moderate", "Stress modéré", "Moderate stress"),
				band(27, 40, "high", "Stress élevé", "High perceived stress"),
			},
		},
		{
			Code:   CodeISI,
			Name:   "Insomnia Severity Index",
			Locale: LocaleFR,
			Items:  likert(7, 0, 4),
			Bands: []Band{
				band(0, 7, "none", "Absence d'insomnie", "No clinically significant insomnia"),
				band(8, 14, "subthreshold", "Insomnie subclinique", "Subthreshold insomnia"),
				band(15, 21, "moderate", "Insomnie clinique modérée", "Moderate clinical insomnia"),
				band(22, 28, "severe", "Insomnie clinique sévère", "Severe clinical insomnia"),
			},
		},
	}
}

// likert builds n items numbered from "1" sharing the same scale.
func likert(n, lo, hi int, reversed ...string) []Item {
	rev := make(map[string]bool, len(reversed))
	for _, id := range reversed {
		rev[id] = true
	}
	items := make([]Item, n)
	for i := range items {
		id := strconv.Itoa(i + 1)
		items[i] = Item{ID: id, Min: lo, Max: hi, Reverse: rev[id]}
	}
	return items
}

func band(lo, hi int, key, fr, en string) Band {
	return Band{
		Low:    lo,
		High:   hi,
		Key:    key,
		Labels: map[string]string{LocaleFR: fr, LocaleEN: en},
	}
}
