package extract

// fieldSchema is the JSON Schema for the extraction output. It is sent to
// the provider for server-side enforcement and applied again locally with
// gojsonschema, because json_object fallbacks and older models only
// guarantee syntax, not shape. Scalars are nullable: null means "the
// posting does not say", and the prompt forbids guessing.
var fieldSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"required_skills":    stringArray,
		"preferred_skills":   stringArray,
		"responsibilities":   stringArray,
		"technologies":       stringArray,
		"benefits":           stringArray,
		"specific_locations": stringArray,
		"seniority":          nullable("string"),
		"years_experience":   nullable("integer"),
		"remote":             nullable("boolean"),
		"contract_feasible":  nullable("boolean"),
		"relocation_required": nullable("boolean"),
		"screening_required": nullable("boolean"),
		"company_size": map[string]any{
			"type": []string{"string", "null"},
			"enum": []any{"startup", "small", "medium", "large", "unknown", nil},
		},
		"salary_min":      nullable("number"),
		"salary_max":      nullable("number"),
		"salary_currency": nullable("string"),
	},
	"required": []string{
		"required_skills", "preferred_skills", "responsibilities",
		"technologies", "benefits", "specific_locations",
		"seniority", "years_experience", "remote", "contract_feasible",
		"relocation_required", "screening_required", "company_size",
		"salary_min", "salary_max", "salary_currency",
	},
}

var stringArray = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

func nullable(t string) map[string]any {
	return map[string]any{"type": []string{t, "null"}}
}
