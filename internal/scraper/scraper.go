// Package scraper defines the contract with the external profile source
// and an HTTP client implementation of it.
//
// The source is treated as an opaque collaborator: it either yields a
// profile with recent posts or one of the sentinel errors in errors.go.
// Parsing heuristics live on the remote side and are out of scope here.
package scraper

import "context"

// Post is one scraped post with engagement stats.
type Post struct {
	Text    string `json:"text"`
	Likes   int    `json:"likes"`
	Reposts int    `json:"reposts"`
}

// Profile is the scraped account summary.
type Profile struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Posts    []Post `json:"posts"`
}

// Empty reports whether the profile carries no analyzable signal at all.
func (p *Profile) Empty() bool {
	return p == nil || (p.Name == "" && p.Bio == "" && len(p.Posts) == 0)
}

// Source fetches profile data for a normalized username.
type Source interface {
	FetchProfile(ctx context.Context, username string) (*Profile, error)
}
