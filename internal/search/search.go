package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultArticle ResultType = "article"
	ResultMessage ResultType = "message"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ArticleID string     `json:"articleId"`
	Status    string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text        string
	FilterType  ResultType // empty = all types
	FilterOwner string
	Limit       int
	Offset      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ArticleRecord is the data we index for an article.
type ArticleRecord struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Excerpt string   `json:"excerpt"`
	Content string   `json:"content"`
	OwnerID string   `json:"ownerId"`
	Status  string   `json:"status"`
	Tags    []string `json:"tags"`
}

// MessageRecord is the data we index for a chat message.
type MessageRecord struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	Sender    string `json:"sender"`
	ArticleID string `json:"articleId"`
}
