package models

// RecommendationTemplate holds canned reason/caution text for one model.
type RecommendationTemplate struct {
	StrengthsText string `json:"strengths_text"`
	CautionText   string `json:"caution_text,omitempty"`
}

// RecommendationRules drives the scoring engine. CategoryOverrides replace
// the base weights wholesale (no merge); SubcategoryMultipliers scale
// individual axes with an implicit 1.0 for unlisted axes.
type RecommendationRules struct {
	BaseWeights             PerformanceVector                 `json:"base_weights"`
	CategoryOverrides       map[string]PerformanceVector      `json:"category_overrides,omitempty"`
	SubcategoryMultipliers  map[string]PerformanceVector      `json:"subcategory_multipliers,omitempty"`
	RecommendationTemplates map[string]RecommendationTemplate `json:"recommendation_templates,omitempty"`
}
