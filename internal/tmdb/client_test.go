package tmdb

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

const movieDetails = `{
  "id": 603,
  "title": "The Matrix",
  "runtime": 136,
  "vote_average": 8.2,
  "vote_count": 25000,
  "release_date": "1999-03-30",
  "origin_country": ["US"],
  "production_companies": [{"id": 79, "name": "Village Roadshow Pictures", "logo_path": "/vr.png"}],
  "genres": [{"id": 28, "name": "Action"}, {"id": 878, "name": "Science Fiction"}],
  "keywords": {"keywords": [{"id": 310, "name": "artificial intelligence"}]},
  "credits": {
    "cast": [{"id": 6384, "name": "Keanu Reeves", "character": "Neo", "profile_path": "/kr.jpg"}],
    "crew": [{"id": 9340, "name": "Lana Wachowski", "job": "Director"}]
  }
}`

const showDetails = `{
  "id": 1399,
  "episode_run_time": [0, 60],
  "number_of_episodes": 73,
  "first_air_date": "2011-04-17",
  "origin_country": ["US"],
  "keywords": {"results": [{"id": 6091, "name": "war"}]},
  "credits": {"cast": [], "crew": []}
}`

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	return newTestClientWithTimeout(t, handler, 2*time.Second)
}

func newTestClientWithTimeout(t *testing.T, handler http.Handler, timeout time.Duration) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewHTTPClient(srv.URL+"/3", "secret", Options{
		Timeout:    timeout,
		RatePerSec: 1000,
		Logger:     log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return client
}

func TestDetailsMovie(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/movie/603" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "secret" {
			t.Errorf("api_key = %q", got)
		}
		if got := r.URL.Query().Get("append_to_response"); got != "keywords,credits" {
			t.Errorf("append_to_response = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, movieDetails)
	}))

	md, err := client.Details(context.Background(), domain.MediaTypeMovie, "603")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if md.Runtime != 136 || md.VoteAverage != 8.2 || md.ReleaseDate != "1999-03-30" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if len(md.Genres) != 2 || len(md.Tags) != 1 || md.Tags[0].Name != "artificial intelligence" {
		t.Fatalf("unexpected genres/tags: %+v %+v", md.Genres, md.Tags)
	}
	if len(md.Cast) != 1 || md.Cast[0].ProfilePath != "/kr.jpg" || len(md.Crew) != 1 {
		t.Fatalf("unexpected credits: %+v %+v", md.Cast, md.Crew)
	}
	if len(md.ProductionCompanies) != 1 || md.ProductionCompanies[0].LogoPath != "/vr.png" {
		t.Fatalf("unexpected companies: %+v", md.ProductionCompanies)
	}
}

func TestDetailsShowKeywordsAndRunTime(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/tv/1399" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, showDetails)
	}))

	md, err := client.Details(context.Background(), domain.MediaTypeTV, "1399")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if len(md.Tags) != 1 || md.Tags[0].Name != "war" {
		t.Fatalf("show keywords not read from results: %+v", md.Tags)
	}
	if len(md.EpisodeRunTime) != 1 || md.EpisodeRunTime[0] != 60 {
		t.Fatalf("zero run times should be dropped: %+v", md.EpisodeRunTime)
	}
	if md.NumberOfEpisodes != 73 {
		t.Fatalf("episodes = %d", md.NumberOfEpisodes)
	}
}

func TestDetailsNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_code":34}`, http.StatusNotFound)
	}))

	_, err := client.Details(context.Background(), domain.MediaTypeMovie, "1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDetailsRejectsUnknownMediaType(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	}))
	if _, err := client.Details(context.Background(), "anime", "1"); err == nil {
		t.Fatalf("expected error for unknown media type")
	}
}

func TestDetailsCircuitOpensOnUpstreamFailures(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	for i := 0; i < 5; i++ {
		if _, err := client.Details(context.Background(), domain.MediaTypeMovie, "603"); err == nil {
			t.Fatalf("expected upstream error")
		}
	}
	_, err := client.Details(context.Background(), domain.MediaTypeMovie, "603")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if got := hits.Load(); got != 5 {
		t.Fatalf("upstream hits = %d, want 5", got)
	}
}

func TestDetailsNotFoundDoesNotTripCircuit(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for i := 0; i < 10; i++ {
		_, err := client.Details(context.Background(), domain.MediaTypeMovie, "404")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("attempt %d: expected ErrNotFound, got %v", i, err)
		}
	}
}

func stallingHandler(hits *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	})
}

func TestDetailsCallerDeadlineDoesNotTripCircuit(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, stallingHandler(&hits))

	for i := 0; i < 8; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		_, err := client.Details(ctx, domain.MediaTypeMovie, "603")
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("attempt %d: expected context.DeadlineExceeded, got %v", i, err)
		}
	}
	if got := hits.Load(); got != 8 {
		t.Fatalf("upstream hits = %d, want 8 (circuit must stay closed)", got)
	}
}

func TestDetailsClientTimeoutTripsCircuit(t *testing.T) {
	var hits atomic.Int32
	client := newTestClientWithTimeout(t, stallingHandler(&hits), 30*time.Millisecond)

	for i := 0; i < 5; i++ {
		if _, err := client.Details(context.Background(), domain.MediaTypeMovie, "603"); err == nil {
			t.Fatalf("expected timeout error")
		}
	}
	_, err := client.Details(context.Background(), domain.MediaTypeMovie, "603")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit after client timeouts, got %v", err)
	}
}
