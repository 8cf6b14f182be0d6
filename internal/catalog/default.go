package catalog

// DefaultVersion is the version string of the built-in catalog.
const DefaultVersion = "builtin-1"

// defaultDocument is the indicator set used by the wellbeing team when no
// CATALOG_PATH is configured.
var defaultDocument = document{
	Version: DefaultVersion,
	Categories: []categoryDoc{
		{
			Key:   Academic,
			Label: "Académico",
			Indicators: []indicatorDoc{
				{Name: "Bajo rendimiento académico", Severity: 3},
				{Name: "Ausencias frecuentes", Severity: 4},
				{Name: "Dificultades de aprendizaje", Severity: 2},
				{Name: "Falta de motivación", Severity: 2},
			},
		},
		{
			Key:   Social,
			Label: "Social",
			Indicators: []indicatorDoc{
				{Name: "Aislamiento social", Severity: 3},
				{Name: "Víctima de bullying", Severity: 4},
				{Name: "Comportamiento agresivo", Severity: 4},
				{Name: "Falta de habilidades sociales", Severity: 2},
			},
		},
		{
			Key:   Emotional,
			Label: "Emocional",
			Indicators: []indicatorDoc{
				{Name: "Síntomas de depresión", Severity: 4},
				{Name: "Ansiedad severa", Severity: 4},
				{Name: "Baja autoestima", Severity: 3},
				{Name: "Cambios de humor extremos", Severity: 3},
			},
		},
		{
			Key:   Behavioral,
			Label: "Conductual",
			Indicators: []indicatorDoc{
				{Name: "Conductas disruptivas", Severity: 3},
				{Name: "Problemas de disciplina", Severity: 3},
				{Name: "Uso de sustancias", Severity: 5},
				{Name: "Autolesión", Severity: 5},
			},
		},
		{
			Key:   Family,
			Label: "Familiar",
			Indicators: []indicatorDoc{
				{Name: "Violencia intrafamiliar", Severity: 5},
				{Name: "Negligencia parental", Severity: 4},
				{Name: "Problemas económicos severos", Severity: 3},
				{Name: "Separación familiar", Severity: 3},
			},
		},
	},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := build(defaultDocument)
	if err != nil {
		// The built-in document is static; failing here means it was edited badly.
		panic(err)
	}
	return c
}
