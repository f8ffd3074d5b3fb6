package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/facefind/facefind/internal/config"
	"github.com/facefind/facefind/internal/embed"
	"github.com/facefind/facefind/internal/index"
	"github.com/facefind/facefind/internal/service"
	"github.com/facefind/facefind/internal/store/mock"
)

const testDim = 4

// fakeProvider serves canned detection results keyed by image payload.
type fakeProvider struct {
	faces map[string][]embed.Face
	err   error
}

func (p *fakeProvider) DetectFaces(ctx context.Context, imageData []byte) ([]embed.Face, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.faces[string(imageData)], nil
}

func (p *fakeProvider) Healthy(ctx context.Context) error {
	return p.err
}

// fakeFetcher maps image URLs to payload bytes; the URL is the payload.
type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(imageURL), nil
}

// testEnv wires handlers over the in-memory store.
type testEnv struct {
	store    *mock.RecordStore
	registry *index.Registry
	provider *fakeProvider
	ingest   *service.Ingest
	match    *service.Match
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := mock.NewRecordStore(testDim)
	reg := index.NewRegistry(st, index.RegistryConfig{Dim: testDim, Kind: index.KindExact})
	t.Cleanup(reg.Stop)

	provider := &fakeProvider{faces: make(map[string][]embed.Face)}

	return &testEnv{
		store:    st,
		registry: reg,
		provider: provider,
		ingest:   service.NewIngest(st, reg, provider, &fakeFetcher{}),
		match:    service.NewMatch(reg, testDim),
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

// ingestPhoto seeds one photo through the service layer.
func (e *testEnv) ingestPhoto(t *testing.T, eventID, photoID string, vecs ...[]float32) {
	t.Helper()
	url := "http://img/" + photoID + ".jpg"
	e.addFaces(url, vecs...)
	if _, err := e.ingest.IngestPhoto(context.Background(), eventID, photoID, url, nil); err != nil {
		t.Fatalf("seeding photo %s: %v", photoID, err)
	}
}

// testMatchConfig returns the match endpoint defaults used in tests.
func testMatchConfig() config.MatchConfig {
	return config.MatchConfig{TopK: 20, Threshold: 0.35}
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
