package catalog

import (
	"context"
	"fmt"
	"strings"

	books "google.golang.org/api/books/v1"
	"google.golang.org/api/option"
)

// GoogleBooks looks up volumes through the Google Books API
type GoogleBooks struct {
	service *books.Service
}

// NewGoogleBooks creates a Google Books client. endpoint overrides the API
// base URL and may be empty; apiKey may be empty for anonymous access.
func NewGoogleBooks(ctx context.Context, endpoint, apiKey string) (*GoogleBooks, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		opts = append(opts, option.WithoutAuthentication())
	}

	svc, err := books.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating google books service: %w", err)
	}
	return &GoogleBooks{service: svc}, nil
}

// Name identifies the catalog in logs and results
func (g *GoogleBooks) Name() string {
	return "google-books"
}

// Lookup searches for isbn and returns the first volume
func (g *GoogleBooks) Lookup(ctx context.Context, isbn string) (*Metadata, error) {
	resp, err := g.service.Volumes.List("isbn:" + isbn).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("querying google books: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].VolumeInfo == nil {
		return nil, nil
	}

	info := resp.Items[0].VolumeInfo
	return &Metadata{
		Title:   info.Title,
		Authors: info.Authors,
	}, nil
}
