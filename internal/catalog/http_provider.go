package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// lookupBatchMax is the most ids the catalog accepts per /tracks request.
	lookupBatchMax = 50
	searchLimit    = 50
)

// defaultGenres seed random unboxes for users without listening preferences.
var defaultGenres = []string{"pop", "rock", "hip-hop", "electronic", "indie", "r-n-b", "jazz", "latin"}

// HTTPProvider implements Provider against a Spotify-compatible Web API.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	market     string
	tokens     *TokenSource
	intn       func(n int) int
}

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Market       string
	Timeout      time.Duration
	TokenCache   TokenCache // optional; defaults to an LRUTokenCache
}

// NewHTTPProvider creates a catalog client.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	return &HTTPProvider{
		httpClient: client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		market:     cfg.Market,
		tokens:     NewTokenSource(client, cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.TokenCache),
		intn:       rand.IntN,
	}
}

func (p *HTTPProvider) Name() string { return "Spotify" }

// Wire types

type apiArtist struct {
	Name string `json:"name"`
}

type apiImage struct {
	URL string `json:"url"`
}

type apiAlbum struct {
	Name   string     `json:"name"`
	Images []apiImage `json:"images"`
}

type apiTrack struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Popularity int         `json:"popularity"`
	Artists    []apiArtist `json:"artists"`
	Album      apiAlbum    `json:"album"`
}

type apiAudioFeatures struct {
	ID           string  `json:"id"`
	Tempo        float64 `json:"tempo"`
	Energy       float64 `json:"energy"`
	Danceability float64 `json:"danceability"`
}

type tracksResponse struct {
	Tracks []*apiTrack `json:"tracks"`
}

type audioFeaturesResponse struct {
	AudioFeatures []*apiAudioFeatures `json:"audio_features"`
}

type searchResponse struct {
	Tracks struct {
		Items []*apiTrack `json:"items"`
	} `json:"tracks"`
}

func (t *apiTrack) toTrack(genre string) Track {
	track := Track{
		ID:         t.ID,
		Name:       t.Name,
		AlbumName:  t.Album.Name,
		Popularity: t.Popularity,
		Genre:      genre,
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	if len(t.Album.Images) > 0 {
		track.AlbumArtURL = t.Album.Images[0].URL
	}
	return track
}

// RandomTrack searches one of the hinted genres and picks a track from the results.
func (p *HTTPProvider) RandomTrack(ctx context.Context, genreHints []string) (*Track, error) {
	genres := genreHints
	if len(genres) == 0 {
		genres = defaultGenres
	}
	genre := genres[p.intn(len(genres))]

	q := url.Values{}
	q.Set("q", fmt.Sprintf("genre:%q", genre))
	q.Set("type", "track")
	q.Set("limit", fmt.Sprint(searchLimit))
	if p.market != "" {
		q.Set("market", p.market)
	}

	var sr searchResponse
	if err := p.get(ctx, "/search", q, &sr); err != nil {
		return nil, err
	}

	items := make([]*apiTrack, 0, len(sr.Tracks.Items))
	for _, it := range sr.Tracks.Items {
		if it != nil && it.ID != "" {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no tracks for genre %q: %w", genre, ErrTrackNotFound)
	}

	track := items[p.intn(len(items))].toTrack(genre)
	features, err := p.audioFeatures(ctx, []string{track.ID})
	if err == nil {
		track.Features = features[track.ID]
	}
	return &track, nil
}

// LookupTracks resolves tracks by id in batches. Audio features are best
// effort; a track without features still resolves.
func (p *HTTPProvider) LookupTracks(ctx context.Context, ids []string) ([]Track, []LookupError) {
	var tracks []Track
	var lookupErrors []LookupError

	for i := 0; i < len(ids); i += lookupBatchMax {
		batch := ids[i:min(i+lookupBatchMax, len(ids))]

		q := url.Values{}
		q.Set("ids", strings.Join(batch, ","))
		if p.market != "" {
			q.Set("market", p.market)
		}

		var tr tracksResponse
		if err := p.get(ctx, "/tracks", q, &tr); err != nil {
			for _, id := range batch {
				lookupErrors = append(lookupErrors, LookupError{TrackID: id, Err: err})
			}
			continue
		}

		found := make(map[string]*apiTrack, len(tr.Tracks))
		for _, t := range tr.Tracks {
			if t != nil {
				found[t.ID] = t
			}
		}

		features, _ := p.audioFeatures(ctx, batch)

		for _, id := range batch {
			t, ok := found[id]
			if !ok {
				lookupErrors = append(lookupErrors, LookupError{TrackID: id, Err: ErrTrackNotFound})
				continue
			}
			track := t.toTrack("")
			track.Features = features[id]
			tracks = append(tracks, track)
		}
	}

	return tracks, lookupErrors
}

func (p *HTTPProvider) audioFeatures(ctx context.Context, ids []string) (map[string]*AudioFeatures, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))

	var ar audioFeaturesResponse
	if err := p.get(ctx, "/audio-features", q, &ar); err != nil {
		return nil, err
	}

	result := make(map[string]*AudioFeatures, len(ar.AudioFeatures))
	for _, f := range ar.AudioFeatures {
		if f == nil {
			continue
		}
		result[f.ID] = &AudioFeatures{Tempo: f.Tempo, Energy: f.Energy, Danceability: f.Danceability}
	}
	return result, nil
}

// get performs an authorized GET and decodes the JSON body into out. A 401
// drops the cached token and retries once.
func (p *HTTPProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		token, err := p.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to obtain catalog token: %w", err)
		}

		reqURL := p.baseURL + path + "?" + query.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			_ = resp.Body.Close()
			p.tokens.Invalidate()
			continue
		}

		err = decodeResponse(resp, out)
		_ = resp.Body.Close()
		return err
	}
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
