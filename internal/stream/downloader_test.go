package stream

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebovdev/voxradio/internal/auth"
	"github.com/glebovdev/voxradio/internal/buffer"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"id3", []byte("ID3\x04\x00"), FormatID3},
		{"mpeg sync", []byte{0xFF, 0xFB, 0x90, 0x64}, FormatMPEG},
		{"wav", []byte("RIFF....WAVE"), FormatWAV},
		{"flac", []byte("fLaC\x00"), FormatFLAC},
		{"ogg", []byte("OggS\x00"), FormatOgg},
		{"html", []byte("<html>"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.expected {
				t.Errorf("Sniff(%q) = %s, want %s", tt.data, got, tt.expected)
			}
		})
	}
}

func newTestDownloader(client *http.Client) *Downloader {
	return NewDownloader(client, "voxradio-test", auth.Identity{MAC: "AA:BB:CC:DD:EE:FF", Secret: "k"})
}

func drain(buf *buffer.Buffer) []byte {
	var out []byte
	for {
		c, ok := buf.Pop()
		if !ok {
			return out
		}
		out = append(out, c.Bytes()...)
		c.Release()
	}
}

func TestRunStreamsWholeBody(t *testing.T) {
	payload := bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x64}, 5000)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "bytes=0-" {
			t.Errorf("Range = %q, want bytes=0-", r.Header.Get("Range"))
		}
		if r.Header.Get(auth.HeaderDynamicKey) == "" {
			t.Error("missing dynamic key header")
		}
		if r.Header.Get("User-Agent") != "voxradio-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	buf := buffer.New(1 << 20)
	buf.SetProducing(true)

	total, err := newTestDownloader(server.Client()).Run(context.Background(), server.URL, buf)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if total != int64(len(payload)) {
		t.Errorf("Run() total = %d, want %d", total, len(payload))
	}
	if buf.Producing() {
		t.Error("producer flag should be cleared when Run returns")
	}

	got := drain(buf)
	if !bytes.Equal(got, payload) {
		t.Errorf("buffered %d bytes, want %d identical bytes", len(got), len(payload))
	}
}

func TestRunChunksAreBoundedByReadSize(t *testing.T) {
	payload := make([]byte, 3*ReadSize+100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	buf := buffer.New(1 << 20)
	buf.SetProducing(true)
	if _, err := newTestDownloader(server.Client()).Run(context.Background(), server.URL, buf); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for {
		c, ok := buf.Pop()
		if !ok {
			break
		}
		if c.Len() > ReadSize {
			t.Errorf("chunk of %d bytes exceeds ReadSize", c.Len())
		}
		c.Release()
	}
}

func TestRunRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	buf := buffer.New(1024)
	buf.SetProducing(true)

	_, err := newTestDownloader(server.Client()).Run(context.Background(), server.URL, buf)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Run() error = %v, want StatusError 404", err)
	}
	if buf.Producing() {
		t.Error("producer flag should be cleared after a failed open")
	}
}

func TestRunRejectsNonHTTPURL(t *testing.T) {
	buf := buffer.New(1024)
	buf.SetProducing(true)

	_, err := newTestDownloader(http.DefaultClient).Run(context.Background(), "ftp://example.com/a.mp3", buf)
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("Run() error = %v, want ErrInvalidURL", err)
	}
	if buf.Producing() {
		t.Error("producer flag should be cleared")
	}
}

func TestRunStopsWhenProducerFlagDrops(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for {
			if _, err := w.Write(make([]byte, ReadSize)); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-release:
				return
			case <-r.Context().Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	}))
	defer server.Close()
	defer close(release)

	// A tiny buffer makes the downloader block in Push almost immediately.
	buf := buffer.New(ReadSize)
	buf.SetProducing(true)

	done := make(chan error, 1)
	go func() {
		_, err := newTestDownloader(server.Client()).Run(context.Background(), server.URL, buf)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	buf.SetProducing(false)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cooperative stop", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after the producer flag dropped")
	}
	buf.Clear()
}

func TestRunStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	buf := buffer.New(1024)
	buf.SetProducing(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := newTestDownloader(server.Client()).Run(ctx, server.URL, buf)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
