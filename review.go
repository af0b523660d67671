package revsearch

import "strings"

// Review is the metadata record stored for every vector.
type Review struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"review_title"`
	Body      string `json:"review_body"`
	ProductID string `json:"product_id"`
	Rating    int    `json:"review_rating"`
}

// Text returns the text that is embedded for the review: the trimmed title
// and body joined by a space, skipping empty parts.
func (r Review) Text() string {
	title := strings.TrimSpace(r.Title)
	body := strings.TrimSpace(r.Body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + " " + body
	}
}

// Hit is a ranked search result with its review.
type Hit struct {
	ID     uint64  `json:"id"`
	Score  float32 `json:"score"`
	Review Review  `json:"review"`
}
