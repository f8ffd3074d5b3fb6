package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/faces" {
			t.Errorf("path = %s, want /faces", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}

		json.NewEncoder(w).Encode(facesResponse{
			Model: "buffalo_l",
			Dim:   4,
			Faces: []Face{
				{Embedding: []float32{1, 0, 0, 0}, DetScore: 0.97, BBox: []float64{1, 2, 3, 4}},
				{Embedding: []float32{0, 1, 0, 0}, DetScore: 0.81, BBox: []float64{5, 6, 7, 8}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	faces, err := client.DetectFaces(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("got %d faces, want 2", len(faces))
	}
	if faces[0].DetScore != 0.97 || len(faces[0].Embedding) != 4 {
		t.Errorf("face[0] = %+v", faces[0])
	}
}

func TestDetectFacesNoFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(facesResponse{Model: "buffalo_l", Dim: 4})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	faces, err := client.DetectFaces(context.Background(), []byte("landscape"))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("got %d faces, want 0", len(faces))
	}
}

func TestDetectFacesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.DetectFaces(context.Background(), []byte("image"))

	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("got %v, want ProviderError", err)
	}
}

func TestDetectFacesUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	_, err := client.DetectFaces(context.Background(), []byte("image"))

	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("got %v, want ProviderError", err)
	}
}

func TestHealthy(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s, want /health", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if err := client.Healthy(context.Background()); err != nil {
		t.Errorf("Healthy on healthy provider failed: %v", err)
	}

	healthy = false
	if err := client.Healthy(context.Background()); err == nil {
		t.Error("Healthy on unhealthy provider should fail")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{name: "jpeg", data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, expected: "image/jpeg"},
		{name: "png", data: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, expected: "image/png"},
		{name: "gif", data: []byte("GIF89a\x00\x00"), expected: "image/gif"},
		{name: "bmp", data: []byte{0x42, 0x4D, 0, 0, 0, 0, 0, 0}, expected: "image/bmp"},
		{name: "unknown", data: []byte("plain text"), expected: "application/octet-stream"},
		{name: "too short", data: []byte{0xFF}, expected: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType = %s, want %s", got, tt.expected)
			}
		})
	}
}
