package supervisor

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write content: %v", err)
		}
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func TestUpdaterDownloadsVerifiesAndExtracts(t *testing.T) {
	archive := buildArchive(t, map[string]string{"bin/app": "new-firmware"})
	digest := md5.Sum(archive)
	hexDigest := hex.EncodeToString(digest[:])

	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		sawAuth = ok && user == "device" && pass == "secret"
		w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	var readyCalled bool
	var failErr error
	u := NewUpdater(dir, func() { readyCalled = true }, func(err error) { failErr = err })

	u.Run(context.Background(), UpdateRequest{
		URL:      srv.URL,
		MD5:      hexDigest,
		Username: "device",
		Password: "secret",
	})

	if failErr != nil {
		t.Fatalf("unexpected failure: %v", failErr)
	}
	if !readyCalled {
		t.Fatal("expected onReady to be called")
	}
	if !sawAuth {
		t.Fatal("expected the server to see HTTP Basic auth")
	}

	data, err := os.ReadFile(filepath.Join(dir, "bin", "app"))
	if err != nil {
		t.Fatalf("expected extracted file: %v", err)
	}
	if string(data) != "new-firmware" {
		t.Errorf("got %q, want %q", data, "new-firmware")
	}
}

func TestUpdaterRejectsMD5Mismatch(t *testing.T) {
	archive := buildArchive(t, map[string]string{"bin/app": "payload"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	var failErr error
	u := NewUpdater(dir, nil, func(err error) { failErr = err })

	u.Run(context.Background(), UpdateRequest{URL: srv.URL, MD5: "0000000000000000000000000000000"})

	if failErr == nil {
		t.Fatal("expected an MD5 mismatch error")
	}
}

func TestUpdaterRejectsArchiveEscape(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := "evil"
	tw.WriteHeader(&tar.Header{Name: "../../etc/passwd", Mode: 0o644, Size: int64(len(content))})
	tw.Write([]byte(content))
	tw.Close()
	gz.Close()
	archive := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	var failErr error
	u := NewUpdater(dir, nil, func(err error) { failErr = err })
	u.Run(context.Background(), UpdateRequest{URL: srv.URL})

	if failErr == nil {
		t.Fatal("expected the path-escape guard to reject this archive")
	}
}
