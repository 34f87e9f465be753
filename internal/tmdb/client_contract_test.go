package tmdb

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

// TestHTTPClientSmoke checks that the client can decode a real details payload
// from the service named by TMDB_URL (the live API or cmd/tmdb-mock).
func TestHTTPClientSmoke(t *testing.T) {
	baseURL := os.Getenv("TMDB_URL")
	if baseURL == "" {
		t.Skip("TMDB_URL not provided")
	}
	client, err := NewHTTPClient(baseURL, os.Getenv("TMDB_API_KEY"), Options{
		Timeout: 3 * time.Second,
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	md, err := client.Details(ctx, domain.MediaTypeMovie, "603")
	if err != nil {
		t.Fatalf("fetch details: %v", err)
	}
	if md.Runtime <= 0 || len(md.Genres) == 0 {
		t.Fatalf("unexpected details payload: %+v", md)
	}
}
