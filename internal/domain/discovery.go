package domain

// SearchKind is the entity type a provider search returns.
type SearchKind string

const (
	SearchUser    SearchKind = "user"
	SearchHashtag SearchKind = "hashtag"
	SearchPlace   SearchKind = "place"
)

// DiscoveredPlace is a place returned by search, identified by its provider id.
type DiscoveredPlace struct {
	ID   string `json:"place_id"`
	Name string `json:"place_name"`
}

// Discovery lists candidate targets found for a search term.
type Discovery struct {
	Term            string            `json:"search_term"`
	Accounts        []string          `json:"accounts"`
	Hashtags        []string          `json:"hashtags"`
	Places          []DiscoveredPlace `json:"places"`
	RelatedHashtags []string          `json:"related_hashtags"`
}
