package models

// ExtractedRequirements is the structured requirement set pulled out of free
// text by the rule-based extractor.
type ExtractedRequirements struct {
	Domains           []string `json:"domains"`
	Skills            []string `json:"skills"`
	ClearanceRequired string   `json:"clearance_required,omitempty"`
	ContractType      string   `json:"contract_type,omitempty"`
	ExperienceLevel   string   `json:"experience_level,omitempty"`
	NAICSCodes        []string `json:"naics_codes"`
	Keywords          []string `json:"keywords"`
}

// ExpertRecommendation is one scored catalog expert, annotated with up to
// three human-readable reasons and up to five relevant expertise tags.
type ExpertRecommendation struct {
	ExpertID          string   `json:"expert_id"`
	Name              string   `json:"name"`
	Headline          string   `json:"headline"`
	Score             int      `json:"score"`
	Reasons           []string `json:"reasons"`
	RelevantExpertise []string `json:"relevant_expertise"`
}
