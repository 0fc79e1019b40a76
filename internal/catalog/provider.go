// Package catalog defines the track catalog that seeds new cards and an
// HTTP client for a Spotify-compatible Web API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrTrackNotFound is returned when the catalog has no track for a request.
var ErrTrackNotFound = errors.New("track not found")

// Track is catalog metadata for a single song.
type Track struct {
	ID          string
	Name        string
	Artists     []string
	AlbumName   string
	AlbumArtURL string
	Popularity  int // 0-100
	Genre       string
	Features    *AudioFeatures // nil when the catalog has none
}

// PrimaryArtist returns the first credited artist, or "Unknown Artist".
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 || t.Artists[0] == "" {
		return "Unknown Artist"
	}
	return t.Artists[0]
}

// AudioFeatures are the optional analysis values used to seed card stats.
type AudioFeatures struct {
	Tempo        float64 // BPM
	Energy       float64 // 0-1
	Danceability float64 // 0-1
}

// LookupError represents a failed lookup for a specific track id.
type LookupError struct {
	TrackID string
	Err     error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("failed to look up track %s: %v", e.TrackID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LookupError) Unwrap() error { return e.Err }

// Provider is the track catalog consumed by card acquisition.
type Provider interface {
	// Name returns the provider's display name.
	Name() string

	// RandomTrack returns one track, preferring the given genres when possible.
	RandomTrack(ctx context.Context, genreHints []string) (*Track, error)

	// LookupTracks resolves tracks by catalog id. It returns as many tracks as
	// possible plus one LookupError per id that could not be resolved.
	LookupTracks(ctx context.Context, ids []string) ([]Track, []LookupError)
}

// Stats are the card values derived from raw track data.
type Stats struct {
	Momentum int
	BPM      int
}

// DeriveStats turns track data into a card's momentum (1-100) and BPM.
// Popularity drives momentum; audio energy and danceability nudge it when
// the catalog provides them.
func DeriveStats(t Track) Stats {
	score := float64(t.Popularity)
	bpm := 0
	if f := t.Features; f != nil {
		score = 0.6*score + 25*f.Energy + 15*f.Danceability
		if f.Tempo > 0 {
			bpm = int(math.Round(f.Tempo))
		}
	}
	momentum := int(math.Round(score))
	return Stats{Momentum: clamp(momentum, 1, 100), BPM: bpm}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
