package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cordexkit/evaltools/internal/observability"
)

// DefaultCatalogURL is the joint-evaluation ESM datastore for CORDEX-CMIP6.
const DefaultCatalogURL = "https://raw.githubusercontent.com/euro-cordex/joint-evaluation/refs/heads/main/CORDEX-CMIP6.json"

// Fetcher downloads catalogs over HTTP, keeping an on-disk copy so repeated
// runs do not re-download an unchanged archive index.
type Fetcher struct {
	httpClient *http.Client
	cacheDir   string
	ttl        time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewFetcher creates a catalog fetcher. Cached copies under cacheDir are
// reused until ttl elapses; a zero ttl disables reuse.
func NewFetcher(cacheDir string, ttl time.Duration, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		cacheDir:   cacheDir,
		ttl:        ttl,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		metrics:    metrics,
	}
}

// SetClock swaps the time source used for cache expiry. Tests inject a fake.
func (f *Fetcher) SetClock(c clockwork.Clock) { f.clock = c }

// Fetch downloads the descriptor at rawURL and its entry table, then loads
// them as a Catalog. The entry table URL is resolved relative to the
// descriptor URL unless absolute.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Catalog, error) {
	descPath, err := f.download(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog descriptor: %w", err)
	}

	data, err := os.ReadFile(descPath)
	if err != nil {
		return nil, fmt.Errorf("read cached descriptor: %w", err)
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse catalog descriptor %s: %w", rawURL, err)
	}
	if desc.CatalogFile == "" {
		return nil, fmt.Errorf("catalog descriptor %s: catalog_file is empty", rawURL)
	}

	csvURL, err := resolveRef(rawURL, desc.CatalogFile)
	if err != nil {
		return nil, err
	}
	csvPath, err := f.download(ctx, csvURL)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog entries: %w", err)
	}

	file, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("read cached entries: %w", err)
	}
	defer file.Close()

	entries, err := parseEntries(file)
	if err != nil {
		return nil, fmt.Errorf("parse catalog entries %s: %w", csvURL, err)
	}

	return &Catalog{Descriptor: desc, Entries: entries}, nil
}

// download returns the local path of the resource, downloading it unless a
// fresh cached copy exists.
func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	path := f.cachePath(rawURL)

	if f.ttl > 0 {
		if info, err := os.Stat(path); err == nil {
			age := f.clock.Now().Sub(info.ModTime())
			if age < f.ttl {
				f.logger.Debug("catalog cache hit", "url", rawURL, "age", age)
				f.metrics.CatalogCache.WithLabelValues("hit").Inc()
				return path, nil
			}
		}
	}
	f.metrics.CatalogCache.WithLabelValues("miss").Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("get %s: status %d: %s", rawURL, resp.StatusCode, body)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	// Write to a temp file first so a failed download never poisons the cache.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store cached copy: %w", err)
	}

	f.logger.Info("catalog downloaded", "url", rawURL, "path", path)
	return path, nil
}

// cachePath derives a stable on-disk name from the URL, keeping the original
// file name readable alongside a hash of the full URL.
func (f *Fetcher) cachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := filepath.Base(rawURL)
	if name == "." || name == "/" {
		name = "catalog"
	}
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8])+"-"+name)
}

// resolveRef resolves ref against base, for entry tables published next to
// their descriptor.
func resolveRef(base, ref string) (string, error) {
	bu, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse catalog url %q: %w", base, err)
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse catalog_file %q: %w", ref, err)
	}
	return bu.ResolveReference(ru).String(), nil
}
