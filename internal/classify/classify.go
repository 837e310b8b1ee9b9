// Package classify decides which candidate links point at downloadable files.
package classify

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/util"
)

type Config struct {
	HTTPClient *http.Client
	// Timeout for each individual probe.
	Timeout time.Duration
	// Upper bound on probes (and page fetches) in flight at once; 0 means unlimited.
	MaxConcurrentProbes int
	// How long successful probe results are remembered; 0 disables the cache.
	CacheTTL time.Duration
	// Maximum number of body bytes read from a scraped page.
	MaxPageSize int64
}

var DefaultConfig = Config{
	HTTPClient:          http.DefaultClient,
	Timeout:             10 * time.Second,
	MaxConcurrentProbes: 16,
	CacheTTL:            5 * time.Minute,
	MaxPageSize:         8 << 20,
}

// Result of probing a single URL.
type Result struct {
	URL            string
	IsDownloadable bool
	// FileType is the response Content-Type, or fig.UnknownType.
	FileType string
	// FileName is taken from an attachment Content-Disposition, if any.
	FileName string
	// ErrorDetail describes why the probe failed, if it did.
	ErrorDetail string
}

// Subtype is the media subtype of FileType ("pdf" for "application/pdf"), or fig.UnknownType.
func (r Result) Subtype() string {
	if r.FileType == "" || r.FileType == fig.UnknownType {
		return fig.UnknownType
	}
	mediaType, _, err := mime.ParseMediaType(r.FileType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(r.FileType, ";", 2)[0])
	}
	if i := strings.LastIndex(mediaType, "/"); i >= 0 && i < len(mediaType)-1 {
		return mediaType[i+1:]
	}
	return fig.UnknownType
}

type Classifier struct {
	config Config
	cache  *cache.Cache
	log    *zap.SugaredLogger
}

func New(config Config) *Classifier {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	c := &Classifier{
		config: config,
		log:    zap.S().Named("classify"),
	}
	if config.CacheTTL > 0 {
		c.cache = cache.New(config.CacheTTL, 2*config.CacheTTL)
	}
	return c
}

// Probe sends a HEAD request for url and decides whether it looks like a file. It never fails: problems are
// reported through Result.ErrorDetail.
func (c *Classifier) Probe(ctx context.Context, url string) Result {
	if c.cache != nil {
		if cached, ok := c.cache.Get(url); ok {
			return cached.(Result)
		}
	}
	res, err := c.probe(ctx, url)
	if err != nil {
		err = fig.WithKind(fig.ErrClassification, err)
		c.log.Debugw("probe failed", "url", url, "error", err)
		return Result{URL: url, FileType: fig.UnknownType, ErrorDetail: err.Error()}
	}
	if c.cache != nil {
		c.cache.SetDefault(url, res)
	}
	return res
}

func (c *Classifier) probe(ctx context.Context, url string) (Result, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("HEAD %v: %v", url, resp.Status)
	}

	res := Result{URL: url, FileType: fig.UnknownType}
	if disposition := resp.Header.Get("Content-Disposition"); util.IsAttachment(disposition) {
		res.IsDownloadable = true
		res.FileName = util.FilenameFromDisposition(disposition)
	}
	// Anything that isn't a web page or plain text is assumed to be a file, which includes e.g. JSON APIs
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		res.FileType = contentType
		if !strings.HasPrefix(contentType, "text/html") && !strings.HasPrefix(contentType, "text/plain") {
			res.IsDownloadable = true
		}
	}
	return res, nil
}

// ProbeAll probes every URL concurrently. Results are in completion order, not input order.
func (c *Classifier) ProbeAll(ctx context.Context, urls []string) []Result {
	results := make(chan Result, len(urls))
	var g errgroup.Group
	if c.config.MaxConcurrentProbes > 0 {
		g.SetLimit(c.config.MaxConcurrentProbes)
	}
	for _, url := range urls {
		url := url
		g.Go(func() error {
			results <- c.Probe(ctx, url)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	res := make([]Result, 0, len(urls))
	for r := range results {
		res = append(res, r)
	}
	return res
}
