package files_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"voicegate/internal/domain"
	"voicegate/internal/infra/files"
)

type staticTokens struct {
	token string
	err   error
	calls int
}

func (s *staticTokens) AcquireToken(_ context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func descriptorFor(url, name string) domain.AudioDescriptor {
	return domain.AudioDescriptor{
		Name:         name,
		FileType:     "wav",
		ContentType:  "audio/wav",
		SourceKind:   domain.SourceDirectAudio,
		RetrievalURL: url,
	}
}

func TestFetcher_DownloadsWithBearerToken(t *testing.T) {
	audio := []byte("RIFF fake wav bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("authorization header: got %q", got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(audio)
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "tok-123"}
	f := files.NewFetcher(tokens, discardLogger())

	dir := t.TempDir()
	path, err := f.Fetch(context.Background(), descriptorFor(srv.URL, "note.wav"), dir)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != string(audio) {
		t.Error("artifact bytes do not match response body")
	}
	if tokens.calls != 1 {
		t.Errorf("token exchanges: got %d, want 1", tokens.calls)
	}
}

// redirectChain serves /hop/0 → /hop/1 → ... → /hop/<hops> where the last
// path returns the payload.
func redirectChain(hops int, audio []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Path, "/hop/%d", &n)
		if n < hops {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n+1), http.StatusFound)
			return
		}
		w.Write(audio)
	}))
}

func TestFetcher_FollowsRedirects(t *testing.T) {
	audio := []byte("redirected bytes")

	for _, hops := range []int{2, 5} {
		t.Run(fmt.Sprintf("%d hops", hops), func(t *testing.T) {
			target := redirectChain(hops, audio)
			defer target.Close()

			f := files.NewFetcher(&staticTokens{token: "tok"}, discardLogger())

			path, err := f.Fetch(context.Background(), descriptorFor(target.URL+"/hop/0", "note.wav"), t.TempDir())
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			data, _ := os.ReadFile(path)
			if string(data) != string(audio) {
				t.Error("artifact bytes do not match final redirect target")
			}
		})
	}
}

func TestFetcher_SixRedirectsRejected(t *testing.T) {
	target := redirectChain(6, []byte("unreachable"))
	defer target.Close()

	f := files.NewFetcher(&staticTokens{token: "tok"}, discardLogger())

	if _, err := f.Fetch(context.Background(), descriptorFor(target.URL+"/hop/0", "note.wav"), t.TempDir()); err == nil {
		t.Fatal("expected an error for a chain of six redirects")
	}
}

func TestFetcher_TooManyRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer srv.Close()

	f := files.NewFetcher(&staticTokens{token: "tok"}, discardLogger())

	if _, err := f.Fetch(context.Background(), descriptorFor(srv.URL, "note.wav"), t.TempDir()); err == nil {
		t.Fatal("expected an error for an endless redirect chain")
	}
}

func TestFetcher_TerminalErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := files.NewFetcher(&staticTokens{token: "tok"}, discardLogger())

	_, err := f.Fetch(context.Background(), descriptorFor(srv.URL, "note.wav"), t.TempDir())
	if err == nil {
		t.Fatal("expected an error for a 403 response")
	}
	if !strings.Contains(err.Error(), "unexpected status") {
		t.Errorf("error: got %v", err)
	}
}

func TestFetcher_TokenFailureIsAuthStage(t *testing.T) {
	f := files.NewFetcher(&staticTokens{err: errors.New("exchange failed")}, discardLogger())

	_, err := f.Fetch(context.Background(), descriptorFor("https://x/y.wav", "note.wav"), t.TempDir())
	if err == nil {
		t.Fatal("expected an error when token exchange fails")
	}
	if domain.FailedStage(err) != domain.StageAuth {
		t.Errorf("failed stage: got %q, want %q", domain.FailedStage(err), domain.StageAuth)
	}
}

func TestArtifactName(t *testing.T) {
	validName := regexp.MustCompile(`^\d+_[A-Za-z0-9._-]+$`)

	tests := []struct {
		name       string
		input      string
		wantSuffix string
	}{
		{"plain name kept", "note.wav", "_note.wav"},
		{"spaces and unicode stripped", "my voice note✨.mp3", "_myvoicenote.mp3"},
		{"path separators stripped", "../../etc/passwd.ogg", "_....etcpasswd.ogg"},
		{"empty name defaults", "", "_audio.wav"},
		{"extension appended when missing", "voicenote", "_voicenote.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := files.ArtifactName(tt.input)
			if !validName.MatchString(got) {
				t.Errorf("artifact name has invalid characters: %q", got)
			}
			if !strings.HasSuffix(got, tt.wantSuffix) {
				t.Errorf("artifact name: got %q, want suffix %q", got, tt.wantSuffix)
			}
			if filepath.Ext(got) == "" {
				t.Errorf("artifact name has no extension: %q", got)
			}
		})
	}
}
