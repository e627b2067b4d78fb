package progress

import "agentcv-backend/internal/endpoints"

type stage struct {
	below int
	label string
}

// Thresholds are exclusive upper bounds; the last stage covers the rest.
var stageTables = map[endpoints.Locale][]stage{
	endpoints.LocaleEN: {
		{25, "Reading your CV"},
		{50, "Analyzing the job description"},
		{75, "Matching skills"},
		{101, "Writing suggestions"},
	},
	endpoints.LocaleES: {
		{25, "Leyendo tu CV"},
		{50, "Analizando la oferta"},
		{75, "Comparando habilidades"},
		{101, "Redactando sugerencias"},
	},
}

var completionLabels = map[endpoints.Locale]string{
	endpoints.LocaleEN: "Analysis complete",
	endpoints.LocaleES: "Análisis completado",
}

// StageLabel returns the label for value in locale.
func StageLabel(locale endpoints.Locale, value int) string {
	table, ok := stageTables[locale]
	if !ok {
		table = stageTables[endpoints.DefaultLocale]
	}
	for _, s := range table {
		if value < s.below {
			return s.label
		}
	}
	return table[len(table)-1].label
}

// CompletionLabel returns the label shown at 100.
func CompletionLabel(locale endpoints.Locale) string {
	if l, ok := completionLabels[locale]; ok {
		return l
	}
	return completionLabels[endpoints.DefaultLocale]
}
