package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"wav/internal/catalog"
	apperrors "wav/internal/errors"
)

// fakeCatalog is an in-memory catalog.Provider.
type fakeCatalog struct {
	tracks    map[string]catalog.Track
	random    *catalog.Track
	err       error
	lastHints []string
}

func newFakeCatalog(tracks ...catalog.Track) *fakeCatalog {
	f := &fakeCatalog{tracks: make(map[string]catalog.Track)}
	for _, t := range tracks {
		f.tracks[t.ID] = t
	}
	return f
}

func (f *fakeCatalog) Name() string { return "fake" }

func (f *fakeCatalog) RandomTrack(_ context.Context, genreHints []string) (*catalog.Track, error) {
	f.lastHints = genreHints
	if f.err != nil {
		return nil, f.err
	}
	if f.random == nil {
		return nil, catalog.ErrTrackNotFound
	}
	t := *f.random
	return &t, nil
}

func (f *fakeCatalog) LookupTracks(_ context.Context, ids []string) ([]catalog.Track, []catalog.LookupError) {
	var tracks []catalog.Track
	var errs []catalog.LookupError
	for _, id := range ids {
		if f.err != nil {
			errs = append(errs, catalog.LookupError{TrackID: id, Err: f.err})
			continue
		}
		t, ok := f.tracks[id]
		if !ok {
			errs = append(errs, catalog.LookupError{TrackID: id, Err: catalog.ErrTrackNotFound})
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, errs
}

// testTrack builds a track without audio features, so its momentum equals popularity.
func testTrack(id string, popularity int) catalog.Track {
	return catalog.Track{
		ID:         id,
		Name:       "Song " + id,
		Artists:    []string{"Artist"},
		AlbumName:  "Album",
		Popularity: popularity,
		Genre:      "pop",
	}
}

var errUpstream = errors.New("upstream down")

// fixedNow anchors time-dependent tests.
var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func appErrorDetails(t *testing.T, err error) map[string]any {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	return appErr.Details
}
