package domain

// SortOrder is the direction of a sorted listing
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// AssetFilter narrows asset listings and lexical search
type AssetFilter struct {
	Type     AssetType `json:"type,omitempty"`      // exact match
	Tags     []string  `json:"tags,omitempty"`      // every listed tag must be present
	MimeType string    `json:"mime_type,omitempty"` // exact match
	Search   string    `json:"search,omitempty"`    // substring over name or metadata description
}

// SearchQuery is a hybrid search request
type SearchQuery struct {
	Query             string      `json:"query"`
	Filter            AssetFilter `json:"filters,omitempty"`
	Sort              string      `json:"sort,omitempty"`  // asset field, default created_at
	Order             SortOrder   `json:"order,omitempty"` // default desc
	Page              int         `json:"page,omitempty"`  // 1-based
	PerPage           int         `json:"per_page,omitempty"`
	IncludeEmbeddings bool        `json:"include_embeddings,omitempty"`
}

// Normalize applies the documented defaults in place
func (q *SearchQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = 20
	}
	if q.PerPage > 100 {
		q.PerPage = 100
	}
	if q.Sort == "" {
		q.Sort = "created_at"
	}
	if q.Order != SortAsc {
		q.Order = SortDesc
	}
}

// Relevance tiers for the lexical fallback ranking. Ordinal signal only.
const (
	RelevanceExact     = 1.0 // query equals name, case-insensitive
	RelevanceSubstring = 0.8 // full query is a substring of the name
	RelevanceToken     = 0.6 // at least one query token appears in the name
	RelevanceResidual  = 0.3 // matched elsewhere (metadata description)
)

// SearchHit is one ranked result. Ephemeral, never persisted.
type SearchHit struct {
	Asset         *Asset   `json:"asset"`
	Relevance     float64  `json:"relevance_score"` // in [0,1]
	MatchedFields []string `json:"matched_fields,omitempty"`
	Snippet       string   `json:"snippet,omitempty"`
}

// SearchResponse is a paginated, ranked result set
type SearchResponse struct {
	Results []*SearchHit `json:"results"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Pages   int          `json:"pages"`
}

// PageCount returns ceil(total/perPage); zero when total is zero
func PageCount(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// PageBounds returns the half-open [start, end) slice bounds for a
// 1-based page over a collection of length total. Out-of-range pages
// yield an empty interval.
func PageBounds(page, perPage, total int) (int, int) {
	start := (page - 1) * perPage
	if start >= total || start < 0 {
		return 0, 0
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return start, end
}
