package edf

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seizurelab/eegrank/internal/domain"
)

// writeTestEDF synthesizes a two-channel EDF file: 20 one-second
// records at 4 samples per record, digital range [0,1000] mapped to
// physical [0,100], every sample set to digital 500 (physical 50).
func writeTestEDF(t *testing.T, path string) {
	t.Helper()

	const (
		numChannels      = 2
		numRecords       = 20
		samplesPerRecord = 4
	)

	var b strings.Builder
	field := func(width int, v string) {
		require.LessOrEqual(t, len(v), width, "field %q overflows %d", v, width)
		fmt.Fprintf(&b, "%-*s", width, v)
	}

	field(8, "0")
	field(80, "test patient")
	field(80, "test recording")
	field(8, "01.01.24")
	field(8, "00.00.00")
	field(8, fmt.Sprint(256+numChannels*256))
	field(44, "")
	field(8, fmt.Sprint(numRecords))
	field(8, "1")
	field(4, fmt.Sprint(numChannels))

	channelBlock := func(width int, values ...string) {
		for _, v := range values {
			field(width, v)
		}
	}
	channelBlock(16, "EEG Fp1", "EEG Fp2")
	channelBlock(80, "", "")
	channelBlock(8, "uV", "uV")
	channelBlock(8, "0", "0")       // physical min
	channelBlock(8, "100", "100")   // physical max
	channelBlock(8, "0", "0")       // digital min
	channelBlock(8, "1000", "1000") // digital max
	channelBlock(80, "", "")
	channelBlock(8, "4", "4") // samples per record
	channelBlock(32, "", "")

	data := make([]byte, 0, numRecords*numChannels*samplesPerRecord*2)
	sample := make([]byte, 2)
	for rec := 0; rec < numRecords; rec++ {
		for ch := 0; ch < numChannels; ch++ {
			for i := 0; i < samplesPerRecord; i++ {
				binary.LittleEndian.PutUint16(sample, 500)
				data = append(data, sample...)
			}
		}
	}

	require.NoError(t, os.WriteFile(path, append([]byte(b.String()), data...), 0o600))
}

func TestReadRecording(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subject01.edf")
	writeTestEDF(t, path)

	rec, err := ReadRecording(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"EEG Fp1", "EEG Fp2"}, rec.ChannelNames)
	assert.Equal(t, 4.0, rec.SamplingRate)
	assert.Equal(t, 20.0, rec.Duration)
	require.Len(t, rec.Data, 2)
	require.Len(t, rec.Data[0], 80)
	// Digital 500 in [0,1000] over physical [0,100] is 50 microvolts.
	assert.InDelta(t, 50.0, rec.Data[0][0], 0.0001)
	assert.InDelta(t, 50.0, rec.Data[1][79], 0.0001)
}

func TestReadRecording_MissingFile(t *testing.T) {
	_, err := ReadRecording(filepath.Join(t.TempDir(), "absent.edf"))
	assert.Error(t, err)
}

func TestStore_ListAndGet(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	writeTestEDF(t, filepath.Join(dir, "subject01.edf"))

	store, err := NewStore(dir, cacheDir, slog.Default())
	require.NoError(t, err)

	ctx := context.Background()
	summaries, err := store.ListSnippets(ctx)
	require.NoError(t, err)
	// A 20-second recording yields two complete 10-second snippets.
	require.Len(t, summaries, 2)
	assert.Equal(t, "subject01_snippet_0000", summaries[0].ID)
	assert.Equal(t, "subject01_snippet_0001", summaries[1].ID)
	assert.Equal(t, "subject01.edf", summaries[0].SourceFile)
	assert.Equal(t, 10.0, summaries[1].StartTime)
	assert.Equal(t, 2, summaries[0].NumChannels)

	snip, err := store.GetSnippet(ctx, "subject01_snippet_0001")
	require.NoError(t, err)
	assert.Equal(t, 10.0, snip.StartTime)
	assert.Equal(t, 20.0, snip.EndTime)
	require.Len(t, snip.Data, 2)
	assert.Len(t, snip.Data[0], 40)

	_, err = store.GetSnippet(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSnippetNotFound)
}

func TestStore_CachesExtraction(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	edfPath := filepath.Join(dir, "subject01.edf")
	writeTestEDF(t, edfPath)

	store, err := NewStore(dir, cacheDir, slog.Default())
	require.NoError(t, err)
	_, err = store.ListSnippets(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_snippets.json"))

	// A second store must serve from the cache even when the source
	// recording is gone.
	require.NoError(t, os.Remove(edfPath))
	// Keep an empty pool directory entry so listing still works.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subject01.edf"), []byte("corrupt"), 0o600))

	fresh, err := NewStore(dir, cacheDir, slog.Default())
	require.NoError(t, err)
	summaries, err := fresh.ListSnippets(context.Background())
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestStore_SkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestEDF(t, filepath.Join(dir, "good.edf"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.edf"), []byte("not edf"), 0o600))

	store, err := NewStore(dir, filepath.Join(dir, "cache"), slog.Default())
	require.NoError(t, err)

	summaries, err := store.ListSnippets(context.Background())
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}
