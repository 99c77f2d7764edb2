package models

// SearchResult is the search collaborator's answer: the total hit count and the
// identifiers returned, in relevance order.
type SearchResult struct {
	Count int
	IDs   []int64
}

// RunQuery describes one invocation's search. It is never persisted.
type RunQuery struct {
	Term       string
	Database   string
	MaxResults int
	Count      int
	IDs        []int64
}

// NewRunQuery builds a query from a search result.
func NewRunQuery(term, database string, maxResults int, res SearchResult) RunQuery {
	return RunQuery{
		Term:       term,
		Database:   database,
		MaxResults: maxResults,
		Count:      res.Count,
		IDs:        res.IDs,
	}
}
