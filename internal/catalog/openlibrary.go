package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultOpenLibraryURL = "https://openlibrary.org"

// OpenLibrary looks up editions through the Open Library Books API
type OpenLibrary struct {
	baseURL string
	client  *http.Client
}

// NewOpenLibrary creates an Open Library client
func NewOpenLibrary(baseURL string) *OpenLibrary {
	if baseURL == "" {
		baseURL = defaultOpenLibraryURL
	}
	return &OpenLibrary{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// openLibraryBook is one entry of the jscmd=data response, keyed by bibkey
type openLibraryBook struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// Name identifies the catalog in logs and results
func (o *OpenLibrary) Name() string {
	return "open-library"
}

// Lookup fetches the edition for isbn
func (o *OpenLibrary) Lookup(ctx context.Context, isbn string) (*Metadata, error) {
	key := "ISBN:" + isbn
	q := url.Values{}
	q.Set("bibkeys", key)
	q.Set("jscmd", "data")
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/books?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying open library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("open library returned status %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]openLibraryBook
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding open library response: %w", err)
	}

	book, ok := result[key]
	if !ok {
		return nil, nil
	}

	md := &Metadata{Title: book.Title}
	for _, a := range book.Authors {
		md.Authors = append(md.Authors, a.Name)
	}
	return md, nil
}

// openLibraryDoc is one entry of a search.json response
type openLibraryDoc struct {
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
}

// SearchTitle runs a free-text search and returns at most limit matches.
// Docs without a title are skipped and a missing author becomes UnknownAuthor.
func (o *OpenLibrary) SearchTitle(ctx context.Context, title string, limit int) ([]Match, error) {
	q := url.Values{}
	q.Set("q", title)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching open library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("open library search returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Docs []openLibraryDoc `json:"docs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding open library search: %w", err)
	}

	var matches []Match
	for _, doc := range result.Docs {
		t := strings.TrimSpace(doc.Title)
		if t == "" {
			continue
		}
		m := Match{Title: t, Author: UnknownAuthor}
		if len(doc.AuthorName) > 0 && strings.TrimSpace(doc.AuthorName[0]) != "" {
			m.Author = strings.TrimSpace(doc.AuthorName[0])
		}
		matches = append(matches, m)
		if len(matches) == limit {
			break
		}
	}
	return matches, nil
}
