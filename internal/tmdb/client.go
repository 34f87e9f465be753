package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

// ErrNotFound is returned when upstream has no title with the requested id.
var ErrNotFound = errors.New("tmdb: not found")

// errCallerDone marks requests abandoned because the caller's context ended.
var errCallerDone = errors.New("tmdb: caller gave up")

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "watchstats_tmdb_requests_total",
		Help: "Total number of TMDB details requests by outcome",
	},
	[]string{"result"},
)

// Client fetches the metadata snapshot of one title.
type Client interface {
	Details(ctx context.Context, mediaType domain.MediaType, mediaID string) (*domain.MediaMetadata, error)
}

// Options tunes the HTTP client.
type Options struct {
	Timeout    time.Duration
	RatePerSec float64
	Logger     *log.Logger
}

// HTTPClient implements Client over the TMDB v3 REST API. Requests are rate
// limited and pass through a circuit breaker that opens after repeated upstream failures.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*domain.MediaMetadata]
	logger  *log.Logger
}

// NewHTTPClient constructs a TMDB client rooted at baseURL, e.g. https://api.themoviedb.org/3.
func NewHTTPClient(baseURL, apiKey string, opts Options) (*HTTPClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 20
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}

	burst := int(opts.RatePerSec)
	if burst < 1 {
		burst = 1
	}

	c := &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   opts.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   opts.Timeout,
				ResponseHeaderTimeout: opts.Timeout,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConnsPerHost:   burst,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), burst),
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*domain.MediaMetadata](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a missing title or a caller that gave up says nothing about upstream health;
		// the client's own timeout still counts as a failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("tmdb: circuit %s %s -> %s", name, from, to)
		},
	})
	return c, nil
}

// Details fetches the details of one movie or show together with its keywords and credits.
func (c *HTTPClient) Details(ctx context.Context, mediaType domain.MediaType, mediaID string) (*domain.MediaMetadata, error) {
	if _, err := domain.ParseMediaType(string(mediaType)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(mediaID) == "" {
		return nil, fmt.Errorf("tmdb: empty media id")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	md, err := c.breaker.Execute(func() (*domain.MediaMetadata, error) {
		md, err := c.fetch(ctx, mediaType, mediaID)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, ctx.Err())
		}
		return md, err
	})
	requestsTotal.WithLabelValues(resultLabel(err)).Inc()
	return md, err
}

func (c *HTTPClient) fetch(ctx context.Context, mediaType domain.MediaType, mediaID string) (*domain.MediaMetadata, error) {
	endpoint := c.baseURL.JoinPath(string(mediaType), mediaID)
	q := endpoint.Query()
	q.Set("api_key", c.apiKey)
	q.Set("append_to_response", "keywords,credits")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload detailsPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode tmdb response: %w", err)
		}
		return convertDetails(payload), nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.logger.Printf("tmdb: unexpected status %d for %s %s", resp.StatusCode, mediaType, mediaID)
		return nil, fmt.Errorf("tmdb: upstream returned %d", resp.StatusCode)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case errors.Is(err, errCallerDone):
		return "cancelled"
	default:
		return "error"
	}
}

type detailsPayload struct {
	Runtime             int              `json:"runtime"`
	EpisodeRunTime      []int            `json:"episode_run_time"`
	NumberOfEpisodes    int              `json:"number_of_episodes"`
	VoteAverage         float64          `json:"vote_average"`
	VoteCount           int              `json:"vote_count"`
	ReleaseDate         string           `json:"release_date"`
	FirstAirDate        string           `json:"first_air_date"`
	OriginCountry       []string         `json:"origin_country"`
	ProductionCountries []domain.Country `json:"production_countries"`
	ProductionCompanies []domain.Company `json:"production_companies"`
	Genres              []domain.Tag     `json:"genres"`
	Keywords            keywordsPayload  `json:"keywords"`
	Credits             creditsPayload   `json:"credits"`
}

// keywordsPayload covers both shapes: movies list under "keywords", shows under "results".
type keywordsPayload struct {
	Keywords []domain.Tag `json:"keywords"`
	Results  []domain.Tag `json:"results"`
}

type creditsPayload struct {
	Cast []domain.Person `json:"cast"`
	Crew []domain.Person `json:"crew"`
}

func convertDetails(payload detailsPayload) *domain.MediaMetadata {
	md := &domain.MediaMetadata{
		Runtime:             nonNegative(payload.Runtime),
		NumberOfEpisodes:    nonNegative(payload.NumberOfEpisodes),
		VoteAverage:         payload.VoteAverage,
		VoteCount:           nonNegative(payload.VoteCount),
		ReleaseDate:         payload.ReleaseDate,
		FirstAirDate:        payload.FirstAirDate,
		OriginCountry:       payload.OriginCountry,
		ProductionCountries: payload.ProductionCountries,
		ProductionCompanies: payload.ProductionCompanies,
		Genres:              payload.Genres,
		Cast:                payload.Credits.Cast,
		Crew:                payload.Credits.Crew,
	}
	for _, minutes := range payload.EpisodeRunTime {
		if minutes > 0 {
			md.EpisodeRunTime = append(md.EpisodeRunTime, minutes)
		}
	}
	md.Tags = payload.Keywords.Keywords
	if len(md.Tags) == 0 {
		md.Tags = payload.Keywords.Results
	}
	if math.IsNaN(md.VoteAverage) || md.VoteAverage < 0 || md.VoteAverage > 10 {
		md.VoteAverage = 0
	}
	return md
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
