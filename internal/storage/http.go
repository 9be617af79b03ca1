package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
)

// HTTPAdapter implements Adapter over any HTTP(S) object store that honors
// byte-range GET and exposes size/etag/mtime via HEAD — the common
// denominator across S3-, GCS-, and Azure-style presigned/public endpoints.
// No vendor SDK is used: credentials, if any, are expected to already be
// embedded in the URL or injected by a surrounding transport.
type HTTPAdapter struct {
	client *http.Client
}

// NewHTTP creates an HTTPAdapter using client, or http.DefaultClient if nil.
func NewHTTP(client *http.Client) *HTTPAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAdapter{client: client}
}

func (h *HTTPAdapter) Head(ctx context.Context, path string) (ObjectInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, path, nil)
	if err != nil {
		return ObjectInfo{}, kwerrors.IoError("failed to build HEAD request", err, false)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return ObjectInfo{}, kwerrors.IoError("HEAD request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ObjectInfo{}, kwerrors.MissingIndex(fmt.Sprintf("object not found: %s", path))
	}
	if resp.StatusCode != http.StatusOK {
		return ObjectInfo{}, kwerrors.IoError(fmt.Sprintf("HEAD returned status %d", resp.StatusCode), nil, resp.StatusCode >= 500)
	}

	info := ObjectInfo{
		Size: resp.ContentLength,
		ETag: strings.Trim(resp.Header.Get("ETag"), `"`),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t.Unix()
		}
	}
	return info, nil
}

func (h *HTTPAdapter) Get(ctx context.Context, path string, offset int64, length int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, kwerrors.IoError("failed to build GET request", err, false)
	}

	if offset > 0 || length >= 0 {
		rangeHeader := fmt.Sprintf("bytes=%d-", offset)
		if length >= 0 {
			rangeHeader = fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
		}
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, kwerrors.IoError("GET request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, kwerrors.MissingIndex(fmt.Sprintf("object not found: %s", path))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, kwerrors.IoError(fmt.Sprintf("GET returned status %d", resp.StatusCode), nil, resp.StatusCode >= 500)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, kwerrors.IoError("read response body failed", err, true)
	}
	return data, nil
}

func (h *HTTPAdapter) Put(ctx context.Context, path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return kwerrors.IoError("failed to buffer PUT body", err, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, path, bytes.NewReader(data))
	if err != nil {
		return kwerrors.IoError("failed to build PUT request", err, false)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Length", strconv.Itoa(len(data)))

	resp, err := h.client.Do(req)
	if err != nil {
		return kwerrors.IoError("PUT request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return kwerrors.IoError(fmt.Sprintf("PUT returned status %d", resp.StatusCode), nil, resp.StatusCode >= 500)
	}
	return nil
}

func (h *HTTPAdapter) Exists(ctx context.Context, path string) (bool, error) {
	_, err := h.Head(ctx, path)
	if err == nil {
		return true, nil
	}
	if kwerrors.GetCode(err) == kwerrors.ErrCodeMissingIndex {
		return false, nil
	}
	return false, err
}
