package edf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/seizurelab/eegrank/internal/domain"
	"github.com/seizurelab/eegrank/internal/ports"
)

var _ ports.SnippetStore = (*Store)(nil)

// SnippetDuration is the fixed snippet length in seconds.
const SnippetDuration = 10.0

// Store implements ports.SnippetStore over a directory of EDF files.
// Each file is sliced into complete 10-second snippets; extraction
// results are cached as JSON per source file and memoized in memory,
// so repeated listing does not re-parse recordings.
type Store struct {
	edfDir   string
	cacheDir string
	logger   *slog.Logger

	mu       sync.Mutex
	snippets []domain.Snippet // nil until first load
}

// NewStore creates a snippet store rooted at edfDir with extraction
// caches under cacheDir, which is created if missing.
func NewStore(edfDir, cacheDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{edfDir: edfDir, cacheDir: cacheDir, logger: logger}, nil
}

// ListSnippets returns summaries for every snippet in the pool.
func (s *Store) ListSnippets(ctx context.Context) ([]domain.SnippetSummary, error) {
	snippets, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SnippetSummary, len(snippets))
	for i, snip := range snippets {
		out[i] = snip.Summary()
	}
	return out, nil
}

// GetSnippet returns the full snippet for the given ID.
func (s *Store) GetSnippet(ctx context.Context, id string) (domain.Snippet, error) {
	snippets, err := s.loadAll(ctx)
	if err != nil {
		return domain.Snippet{}, err
	}
	for _, snip := range snippets {
		if snip.ID == id {
			return snip, nil
		}
	}
	return domain.Snippet{}, fmt.Errorf("%w: %s", domain.ErrSnippetNotFound, id)
}

// loadAll returns the memoized snippet list, extracting from every EDF
// file in the pool directory on first use.
func (s *Store) loadAll(ctx context.Context) ([]domain.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snippets != nil {
		return s.snippets, nil
	}

	files, err := s.edfFiles()
	if err != nil {
		return nil, err
	}

	all := make([]domain.Snippet, 0)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snippets, err := s.processFile(path)
		if err != nil {
			// One unreadable recording should not empty the pool.
			s.logger.Error("skipping edf file", "path", path, "error", err)
			continue
		}
		all = append(all, snippets...)
	}
	s.snippets = all
	return all, nil
}

// edfFiles lists *.edf in the pool directory, case-insensitively and
// without duplicates.
func (s *Store) edfFiles() ([]string, error) {
	entries, err := os.ReadDir(s.edfDir)
	if err != nil {
		return nil, fmt.Errorf("read edf dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".edf") {
			files = append(files, filepath.Join(s.edfDir, e.Name()))
		}
	}
	return files, nil
}

// processFile returns the snippets of one EDF file, from the JSON
// cache when present, extracting and caching otherwise.
func (s *Store) processFile(path string) ([]domain.Snippet, error) {
	cachePath := s.cachePath(path)
	if data, err := os.ReadFile(cachePath); err == nil { // #nosec G304
		var cached []domain.Snippet
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		// A corrupt cache falls through to re-extraction.
		s.logger.Warn("ignoring corrupt snippet cache", "path", cachePath)
	}

	rec, err := ReadRecording(path)
	if err != nil {
		return nil, err
	}
	snippets := extractSnippets(rec, filepath.Base(path))

	if len(snippets) > 0 {
		if data, err := json.Marshal(snippets); err == nil {
			if err := os.WriteFile(cachePath, data, 0o600); err != nil {
				s.logger.Warn("snippet cache write failed", "path", cachePath, "error", err)
			}
		}
	}
	return snippets, nil
}

// cachePath derives the cache file name from the source path: the file
// stem plus a short hash keeps names unique across directories.
func (s *Store) cachePath(edfPath string) string {
	sum := sha256.Sum256([]byte(edfPath))
	stem := strings.TrimSuffix(filepath.Base(edfPath), filepath.Ext(edfPath))
	return filepath.Join(s.cacheDir, fmt.Sprintf("%s_%s_snippets.json", stem, hex.EncodeToString(sum[:4])))
}

// extractSnippets slices a recording into complete fixed-length
// snippets; a trailing partial window is dropped.
func extractSnippets(rec *Recording, sourceFile string) []domain.Snippet {
	stem := strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile))
	count := int(rec.Duration / SnippetDuration)

	snippets := make([]domain.Snippet, 0, count)
	for i := 0; i < count; i++ {
		startTime := float64(i) * SnippetDuration
		startSample := int(startTime * rec.SamplingRate)
		endSample := int((startTime + SnippetDuration) * rec.SamplingRate)

		window := make([][]float64, len(rec.Data))
		for ch := range rec.Data {
			window[ch] = append([]float64(nil), rec.Data[ch][startSample:endSample]...)
		}

		snippets = append(snippets, domain.Snippet{
			ID:           fmt.Sprintf("%s_snippet_%04d", stem, i),
			Channels:     append([]string(nil), rec.ChannelNames...),
			Data:         window,
			SamplingRate: rec.SamplingRate,
			Duration:     SnippetDuration,
			SourceFile:   sourceFile,
			StartTime:    startTime,
			EndTime:      startTime + SnippetDuration,
		})
	}
	return snippets
}
