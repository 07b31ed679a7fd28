package fetcher

import (
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Downloader fetches one URL once; the retry loop lives in resolveAvatar so
// the attempt count stays a visible, testable parameter.
type Downloader interface {
	Download(url string) ([]byte, error)
}

type HTTPDownloader struct {
	client *http.Client
}

func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	return &HTTPDownloader{client: &http.Client{Timeout: timeout}}
}

func (d *HTTPDownloader) Download(url string) ([]byte, error) {
	resp, err := d.client.Get(url)
	if err != nil {
		return nil, errors.Wrap(err, "download")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read download body")
	}
	return data, nil
}
