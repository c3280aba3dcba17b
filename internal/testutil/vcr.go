// Package testutil holds helpers shared by package tests.
package testutil

import (
	"net/http"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewRecorder creates a VCR recorder in recording mode that forwards to
// real and writes its cassette under t.TempDir. Call the returned stop
// function before loading the cassette.
func NewRecorder(t *testing.T, cassetteName string, real http.RoundTripper) (*recorder.Recorder, string, func()) {
	t.Helper()

	cassettePath := filepath.Join(t.TempDir(), cassetteName)

	r, err := recorder.NewAsMode(cassettePath, recorder.ModeRecording, real)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}
	t.Cleanup(stop)

	return r, cassettePath, stop
}

// LoadCassette reads back a cassette written by NewRecorder.
func LoadCassette(t *testing.T, cassettePath string) *cassette.Cassette {
	t.Helper()

	c, err := cassette.Load(cassettePath)
	if err != nil {
		t.Fatalf("Failed to load cassette %s: %v", cassettePath, err)
	}
	return c
}

// VCRHTTPClient returns an HTTP client configured to use the VCR recorder
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}
