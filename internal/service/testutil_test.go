package service

import (
	"context"
	"testing"

	"github.com/facefind/facefind/internal/embed"
	"github.com/facefind/facefind/internal/index"
	"github.com/facefind/facefind/internal/store/mock"
)

const testDim = 4

// fakeProvider is an in-memory embed.Provider. Faces are served per
// image payload, keyed by the payload string.
type fakeProvider struct {
	faces map[string][]embed.Face
	err   error
	calls int
}

func (p *fakeProvider) DetectFaces(ctx context.Context, imageData []byte) ([]embed.Face, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.faces[string(imageData)], nil
}

func (p *fakeProvider) Healthy(ctx context.Context) error {
	return p.err
}

// fakeFetcher resolves image URLs to payload bytes without touching the
// network. The URL itself is the payload.
type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(imageURL), nil
}

// testEnv wires the services over the in-memory store.
type testEnv struct {
	store    *mock.RecordStore
	registry *index.Registry
	provider *fakeProvider
	fetcher  *fakeFetcher
	ingest   *Ingest
	match    *Match
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := mock.NewRecordStore(testDim)
	reg := index.NewRegistry(st, index.RegistryConfig{Dim: testDim, Kind: index.KindExact})
	t.Cleanup(reg.Stop)

	provider := &fakeProvider{faces: make(map[string][]embed.Face)}
	fetcher := &fakeFetcher{}

	return &testEnv{
		store:    st,
		registry: reg,
		provider: provider,
		fetcher:  fetcher,
		ingest:   NewIngest(st, reg, provider, fetcher),
		match:    NewMatch(reg, testDim),
	}
}

// addFaces registers detection results for an image URL.
func (e *testEnv) addFaces(imageURL string, vecs ...[]float32) {
	faces := make([]embed.Face, len(vecs))
	for i, vec := range vecs {
		faces[i] = embed.Face{Embedding: vec, DetScore: 0.9}
	}
	e.provider.faces[imageURL] = faces
}
