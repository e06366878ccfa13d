package models

// Recommendation is one ranked movie with its similarity score.
type Recommendation struct {
	Rank         int     `json:"rank"`
	Movie        *Movie  `json:"movie"`
	Score        float64 `json:"score"`         // cosine similarity in [-1, 1]
	MatchPercent int     `json:"match_percent"` // score as a 0-100 percentage
	PosterURL    string  `json:"poster_url,omitempty"`
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	RequestID       string            `json:"request_id"`
	Query           string            `json:"query"`
	Seed            *Movie            `json:"seed,omitempty"` // set for "more like this" requests
	Recommendations []*Recommendation `json:"recommendations"`
	Total           int               `json:"total"`
	CatalogSize     int               `json:"catalog_size"`
	QueryTime       int64             `json:"query_time_ms"`
}

// MatchPercent converts a cosine score to a whole percentage clamped to [0, 100].
func MatchPercent(score float64) int {
	p := int(score*100 + 0.5)
	if score < 0 || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
