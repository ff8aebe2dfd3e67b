package models

// ChartOption is one selectable answer. Options on the third, compound
// question carry per-axis multipliers applied by the scoring engine.
type ChartOption struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Description string            `json:"description,omitempty"`
	Multiplier  PerformanceVector `json:"multiplier,omitempty"`
}

// ChartQuestion is a survey question. Simple questions carry Options;
// the compound third question carries nested Questions instead.
type ChartQuestion struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Question  string          `json:"question,omitempty"`
	Questions []ChartQuestion `json:"questions,omitempty"`
	Options   []ChartOption   `json:"options,omitempty"`
}

// SurveyChart is the ordered question document served to the frontend and
// consulted by the scoring engine for Q3 multipliers.
type SurveyChart struct {
	Questions []ChartQuestion `json:"questions"`
}

// ThirdQuestion returns the compound question's sub-questions, or nil when
// the chart has no third question.
func (c *SurveyChart) ThirdQuestion() []ChartQuestion {
	if len(c.Questions) < 3 {
		return nil
	}
	return c.Questions[2].Questions
}
