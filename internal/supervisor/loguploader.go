package supervisor

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"
)

// LogUploader ships a local log file to a collection endpoint. Full
// log-management (rotation policy, retry queues) is out of scope; the
// supervisor only needs somewhere to hand a path off to.
type LogUploader interface {
	UploadLogs(ctx context.Context, path string) error
}

// httpLogUploader is a minimal TLS HTTP implementation: PUT the raw
// file body to a configured endpoint with HTTP Basic auth.
type httpLogUploader struct {
	client   *http.Client
	endpoint string
	username string
	password string
}

// NewHTTPLogUploader returns a LogUploader that PUTs files to endpoint
// over TLS.
func NewHTTPLogUploader(endpoint, username, password string) LogUploader {
	return &httpLogUploader{
		client: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		endpoint: endpoint,
		username: username,
		password: password,
	}
}

func (u *httpLogUploader) UploadLogs(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("loguploader: open %s: %w", path, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.endpoint, f)
	if err != nil {
		return fmt.Errorf("loguploader: build request: %w", err)
	}
	if u.username != "" {
		req.SetBasicAuth(u.username, u.password)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("loguploader: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("loguploader: server returned %s", resp.Status)
	}
	return nil
}
