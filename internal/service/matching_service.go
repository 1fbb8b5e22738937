package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vettedhq/sourcing-api/internal/models"
	"github.com/vettedhq/sourcing-api/pkg/config"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
)

type matchingRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.ExpertRequest, error)
}

type matchingExpertRepository interface {
	Catalog(ctx context.Context) ([]models.Expert, error)
}

// MatchResult bundles what the matcher extracted with who it recommends.
type MatchResult struct {
	Requirements    models.ExtractedRequirements  `json:"requirements"`
	Recommendations []models.ExpertRecommendation `json:"recommendations"`
}

// MatchingService runs the rule-based requirement extractor and expert
// scorer for a request. Both stages are pure functions over their inputs, so
// results are deterministic and cache well.
type MatchingService struct {
	requests matchingRequestRepository
	experts  matchingExpertRepository
	cache    *CacheService
	cfg      config.MatchingConfig
	logger   *zap.Logger
}

// NewMatchingService constructs a matching service.
func NewMatchingService(requests matchingRequestRepository, experts matchingExpertRepository, cache *CacheService, cfg config.MatchingConfig, logger *zap.Logger) *MatchingService {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingService{requests: requests, experts: experts, cache: cache, cfg: cfg, logger: logger}
}

func matchCacheKey(requestID string) string {
	return "match:request:" + requestID
}

// Match extracts requirements from the request's text and scores the expert
// catalog against them.
func (s *MatchingService) Match(ctx context.Context, requestID string) (*MatchResult, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "matching is not available")
	}

	if s.cache.Enabled() {
		var cached MatchResult
		if hit, _ := s.cache.Get(ctx, matchCacheKey(requestID), &cached); hit {
			return &cached, nil
		}
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	catalog, err := s.experts.Catalog(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load expert catalog")
	}

	text := strings.Join(append([]string{request.Title, request.Description}, request.RequiredExpertise...), "\n")
	requirements := ExtractRequirements(text)
	recommendations := MatchExperts(requirements, catalog, s.cfg.MaxResults, s.cfg.MinScore)

	result := &MatchResult{Requirements: requirements, Recommendations: recommendations}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, matchCacheKey(requestID), result, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache match result", zap.String("requestId", requestID), zap.Error(err))
		}
	}
	return result, nil
}

// Invalidate drops the cached match result for a request, for callers that
// just changed its text.
func (s *MatchingService) Invalidate(ctx context.Context, requestID string) {
	if err := s.cache.Invalidate(ctx, matchCacheKey(requestID)); err != nil {
		s.logger.Warn("failed to invalidate match cache", zap.String("requestId", requestID), zap.Error(err))
	}
}

// domainPatterns maps a requirement domain to the phrases that imply it.
// Order matters for output determinism, hence the parallel slice.
var domainOrder = []string{"cybersecurity", "cloud", "software", "data", "contracting", "logistics"}

var domainPatterns = map[string][]string{
	"cybersecurity": {"cyber", "security", "fedramp", "nist", "cmmc", "rmf", "zero trust", "dod", "stig"},
	"cloud":         {"cloud", "aws", "azure", "gcp", "saas", "iaas"},
	"software":      {"software", "devops", "engineering", "agile", "api"},
	"data":          {"data", "analytics", "machine learning", "artificial intelligence"},
	"contracting":   {"contracting", "procurement", "acquisition", "far ", "dfars", "gsa"},
	"logistics":     {"logistics", "supply chain", "sustainment"},
}

// skillKeywords is the static keyword list the extractor matches against.
// Matched tokens are title-cased for display and kept raw for scoring.
var skillKeywords = []string{
	"fedramp", "nist 800-53", "nist 800-171", "cmmc", "rmf", "ato",
	"zero trust", "penetration testing", "devsecops", "stig",
	"aws", "azure", "gcp", "kubernetes", "terraform", "docker",
	"capture management", "proposal writing", "pricing", "cost estimation",
	"far", "dfars", "gsa schedule", "sbir", "idiq",
	"machine learning", "data engineering", "etl",
}

// clearancePriority is checked in order; the first hit wins. Longer phrases
// come first so "secret" does not shadow "top secret".
var clearancePriority = []struct {
	needle string
	label  string
}{
	{"ts/sci", "TS/SCI"},
	{"ts-sci", "TS/SCI"},
	{"top secret", "Top Secret"},
	{"public trust", "Public Trust"},
	{"secret", "Secret"},
}

var contractTypePriority = []struct {
	needle string
	label  string
}{
	{"prime contract", "Prime"},
	{"subcontract", "Subcontract"},
	{"idiq", "IDIQ"},
	{"gwac", "GWAC"},
	{"bpa", "BPA"},
	{"gsa schedule", "GSA Schedule"},
}

var experienceLevelPatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(\d+)\s*\+?\s*years`), "$1+ years"},
	{regexp.MustCompile(`\b(principal|senior|lead)\b`), "senior"},
	{regexp.MustCompile(`\bmid[- ]level\b`), "mid"},
	{regexp.MustCompile(`\b(junior|entry[- ]level)\b`), "junior"},
}

var naicsPattern = regexp.MustCompile(`\b\d{6}\b`)

// ExtractRequirements runs the fixed battery of case-insensitive matchers
// over free text. Deterministic: tables are iterated in fixed order.
func ExtractRequirements(text string) models.ExtractedRequirements {
	lower := strings.ToLower(text)
	req := models.ExtractedRequirements{
		Domains:    []string{},
		Skills:     []string{},
		NAICSCodes: []string{},
		Keywords:   []string{},
	}

	for _, domain := range domainOrder {
		for _, phrase := range domainPatterns[domain] {
			if strings.Contains(lower, phrase) {
				req.Domains = append(req.Domains, domain)
				break
			}
		}
	}

	for _, keyword := range skillKeywords {
		if strings.Contains(lower, keyword) {
			req.Skills = append(req.Skills, titleCase(keyword))
			req.Keywords = append(req.Keywords, keyword)
		}
	}

	for _, c := range clearancePriority {
		if strings.Contains(lower, c.needle) {
			req.ClearanceRequired = c.label
			break
		}
	}
	for _, c := range contractTypePriority {
		if strings.Contains(lower, c.needle) {
			req.ContractType = c.label
			break
		}
	}
	for _, p := range experienceLevelPatterns {
		if m := p.re.FindStringSubmatch(lower); m != nil {
			if strings.Contains(p.label, "$1") {
				req.ExperienceLevel = strings.Replace(p.label, "$1", m[1], 1)
			} else {
				req.ExperienceLevel = p.label
			}
			break
		}
	}

	seen := map[string]bool{}
	for _, code := range naicsPattern.FindAllString(text, -1) {
		if !seen[code] {
			seen[code] = true
			req.NAICSCodes = append(req.NAICSCodes, code)
		}
	}
	return req
}

// domainCategories maps a requirement domain onto expert catalog categories.
var domainCategories = map[string][]string{
	"cybersecurity": {"cybersecurity", "security & compliance"},
	"cloud":         {"cloud", "cloud & infrastructure"},
	"software":      {"software development", "engineering"},
	"data":          {"data & analytics", "ai & machine learning"},
	"contracting":   {"government contracting", "capture & proposals"},
	"logistics":     {"logistics", "supply chain"},
}

// MatchExperts scores every catalog expert against the extracted
// requirements. Scores are additive integers clamped to [0,100]; experts at
// or below minScore are dropped; ties keep catalog order.
func MatchExperts(req models.ExtractedRequirements, catalog []models.Expert, maxResults, minScore int) []models.ExpertRecommendation {
	if maxResults <= 0 {
		maxResults = 5
	}
	if minScore <= 0 {
		minScore = 20
	}

	recommendations := make([]models.ExpertRecommendation, 0, maxResults)
	for _, expert := range catalog {
		score, reasons, relevant := scoreExpert(req, expert)
		if score <= minScore {
			continue
		}
		if score > 100 {
			score = 100
		}
		recommendations = append(recommendations, models.ExpertRecommendation{
			ExpertID:          expert.ID,
			Name:              expert.Name,
			Headline:          expert.Headline,
			Score:             score,
			Reasons:           reasons,
			RelevantExpertise: relevant,
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Score > recommendations[j].Score
	})
	if len(recommendations) > maxResults {
		recommendations = recommendations[:maxResults]
	}
	return recommendations
}

func scoreExpert(req models.ExtractedRequirements, expert models.Expert) (int, []string, []string) {
	score := 0
	reasons := []string{}
	relevant := []string{}

	lowerCategories := make([]string, len(expert.Categories))
	for i, c := range expert.Categories {
		lowerCategories[i] = strings.ToLower(c)
	}
	haystack := strings.ToLower(expert.Headline + " " + expert.Bio + " " + strings.Join(expert.Expertise, " "))
	lowerHeadline := strings.ToLower(expert.Headline)

	categoryHits := 0
	for _, domain := range req.Domains {
		matched := false
		for _, category := range domainCategories[domain] {
			for _, have := range lowerCategories {
				if strings.Contains(have, category) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched && categoryHits < 2 {
			categoryHits++
			score += 30
			reasons = append(reasons, "Works in "+domain)
		}
	}

	skillScore := 0
	for _, keyword := range req.Keywords {
		if !strings.Contains(haystack, keyword) {
			continue
		}
		if skillScore < 40 {
			skillScore += 10
		}
		for _, tag := range expert.Expertise {
			if strings.Contains(strings.ToLower(tag), keyword) && !containsOption(relevant, tag) {
				relevant = append(relevant, tag)
			}
		}
		if len(reasons) < 3 {
			reasons = append(reasons, "Experience with "+titleCase(keyword))
		}
	}
	score += skillScore

	if expert.Rating >= 4.9 {
		score += 15
		if len(reasons) < 3 {
			reasons = append(reasons, "Top-rated by clients")
		}
	}
	if expert.ReviewCount >= 100 {
		score += 10
	}
	if expert.Verified {
		score += 5
		if len(reasons) < 3 {
			reasons = append(reasons, "Verified expert")
		}
	}

	for _, domain := range req.Domains {
		hit := false
		for _, phrase := range domainPatterns[domain] {
			if strings.Contains(lowerHeadline, phrase) {
				hit = true
				break
			}
		}
		if hit {
			score += 20
			break
		}
	}

	if len(reasons) > 3 {
		reasons = reasons[:3]
	}
	if len(relevant) > 5 {
		relevant = relevant[:5]
	}
	if len(relevant) == 0 {
		for i, tag := range expert.Expertise {
			if i == 3 {
				break
			}
			relevant = append(relevant, tag)
		}
	}
	return score, reasons, relevant
}

// titleCase uppercases the first letter of each space-separated word,
// leaving the rest lowercased ("FedRAMP" becomes "Fedramp").
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
