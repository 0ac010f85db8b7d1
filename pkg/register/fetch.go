package register

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedLocator reports a locator with a scheme Fetch cannot read.
var ErrUnsupportedLocator = errors.New("unsupported schema locator")

// documentLimit caps the size of a fetched schema document.
const documentLimit = 2 << 20 // 2MB

// ClientOptions configures schema document fetching.
type ClientOptions struct {
	Timeout     time.Duration // HTTP client timeout (default 30s)
	MaxAttempts int           // retry attempts for HTTP (default 3)
}

// Client fetches schema documents. Documents whose locator ends in
// ".zst" are zstd-compressed and decompressed on read.
type Client struct {
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

// DefaultClient is used by Fetch.
var DefaultClient = NewClient(ClientOptions{})

// NewClient creates a client. Zero-value or negative fields in opts
// receive defaults.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Client{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
		backoff:     time.Second,
	}
}

// Fetch reads the document at locator with DefaultClient.
func Fetch(locator string) ([]byte, error) {
	return DefaultClient.Fetch(locator)
}

// Fetch reads the document at locator.
func (c *Client) Fetch(locator string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch scheme(locator) {
	case "":
		data, err = readFile(locator)
	case "file":
		u, perr := url.Parse(locator)
		if perr != nil {
			return nil, fmt.Errorf("fetch schema %s: %w", locator, perr)
		}
		data, err = readFile(u.Path)
	case "http", "https":
		data, err = c.get(locator)
	default:
		return nil, fmt.Errorf("fetch schema %s: %w", locator, ErrUnsupportedLocator)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch schema %s: %w", locator, err)
	}
	if strings.HasSuffix(locator, ".zst") {
		if data, err = decompressZstd(data); err != nil {
			return nil, fmt.Errorf("fetch schema %s: decompress: %w", locator, err)
		}
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > documentLimit {
		return nil, fmt.Errorf("document exceeds %d bytes", documentLimit)
	}
	return os.ReadFile(path)
}

func (c *Client) get(locator string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-yaml, application/yaml, text/yaml, */*")

	resp, err := c.retryDo(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("GET %s: %s: %s", locator, resp.Status, strings.TrimSpace(string(msg)))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, documentLimit+1))
	if err != nil {
		return nil, err
	}
	if len(body) > documentLimit {
		return nil, fmt.Errorf("document exceeds %d bytes", documentLimit)
	}
	return body, nil
}

// retryDo executes req with exponential backoff. Network errors, 429 and
// 5xx responses are retried; other responses are returned as is.
func (c *Client) retryDo(req *http.Request) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			lastResp = nil
			continue
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// Drain before retrying so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastResp = resp
		lastErr = nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	lastResp.Body = io.NopCloser(bytes.NewReader(nil))
	return lastResp, nil
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// scheme returns the lowercased URL scheme of locator, or "" for plain
// paths. Single-letter schemes are treated as Windows drive letters.
func scheme(locator string) string {
	i := strings.Index(locator, "://")
	if i <= 1 {
		return ""
	}
	return strings.ToLower(locator[:i])
}
