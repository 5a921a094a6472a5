package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"voicegate/internal/application"
	"voicegate/internal/domain"
)

const (
	downloadTimeout = 60 * time.Second
	maxRedirects    = 5
	defaultName     = "audio.wav"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Fetcher retrieves the bytes behind a classified attachment with a fresh
// bearer token per download and writes them to a working artifact.
type Fetcher struct {
	tokens     application.TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

func NewFetcher(tokens application.TokenProvider, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: downloadTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// via holds every request already issued, including the
				// initial one, so a chain of exactly maxRedirects hops sees
				// len(via) == maxRedirects and must still be allowed.
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		logger: logger,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, desc domain.AudioDescriptor, dir string) (string, error) {
	token, err := f.tokens.AcquireToken(ctx)
	if err != nil {
		return "", domain.NewStageError(domain.StageAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.RetrievalURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading attachment: %w", err)
	}
	defer resp.Body.Close()

	// Some hosts terminate their auth-redirect chains on a 3xx status, so
	// anything below 400 counts as success.
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", fmt.Errorf("downloading attachment: unexpected status %s", resp.Status)
	}

	path := filepath.Join(dir, ArtifactName(desc.Name))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating artifact: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing artifact: %w", err)
	}

	f.logger.Debug("artifact written", "path", path, "bytes", written)
	return path, nil
}

// ArtifactName builds a collision-resistant artifact filename: a timestamp
// prefix plus the sanitized original name, with a guaranteed extension so
// downstream tooling can sniff the format.
func ArtifactName(name string) string {
	name = unsafeChars.ReplaceAllString(name, "")
	if name == "" {
		name = defaultName
	}
	if filepath.Ext(name) == "" {
		name += ".wav"
	}
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), name)
}
