// Package catalog resolves ISBNs into titles and authors using external
// bibliographic services.
package catalog

import (
	"context"
	"strings"
)

const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

// Metadata is what a catalog knows about a book
type Metadata struct {
	Title   string
	Authors []string
}

// Catalog looks up a single identifier.
// Lookup returns nil, nil when the catalog has no record for the identifier.
type Catalog interface {
	Name() string
	Lookup(ctx context.Context, isbn string) (*Metadata, error)
}

// Result is the outcome of a resolution. When Found is false the remaining
// fields other than ISBN are empty.
type Result struct {
	Found  bool   `json:"found"`
	ISBN   string `json:"isbn"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	// Source names the catalog that matched and Query the identifier form it matched on
	Source string `json:"source,omitempty"`
	Query  string `json:"query,omitempty"`
}

// Match is one hit from a title search
type Match struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

func found(id, source, query string, md *Metadata) Result {
	title := strings.TrimSpace(md.Title)
	if title == "" {
		title = UnknownTitle
	}
	author := UnknownAuthor
	if len(md.Authors) > 0 {
		if a := strings.TrimSpace(md.Authors[0]); a != "" {
			author = a
		}
	}
	return Result{
		Found:  true,
		ISBN:   id,
		Title:  title,
		Author: author,
		Source: source,
		Query:  query,
	}
}
