package attachments

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/northstar-market/concierge/internal/config"
)

func TestExtractor_PlainTextPassthrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("refunds take five business days"), 0o644))

	e := NewExtractor(config.AttachmentsConfig{})
	text, err := e.ExtractText(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "refunds take five business days", text)
}

func TestExtractor_HTMLExtractsReadableMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	html := `<html><head><title>Refund Policy</title></head><body>
		<article><h1>Refund Policy</h1><p>Items may be refunded within thirty days of purchase.</p></article>
	</body></html>`
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))

	e := NewExtractor(config.AttachmentsConfig{})
	text, err := e.ExtractText(context.Background(), path)
	require.NoError(t, err)
	require.Contains(t, text, "refunded within thirty days")
}

func TestExtractor_TruncatesToMaxChars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 100)), 0o644))

	e := NewExtractor(config.AttachmentsConfig{MaxChars: 10})
	text, err := e.ExtractText(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, text, 10)
}

func TestExtractor_AudioWithoutModelConfiguredReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	writeSilentWAV(t, path)

	e := NewExtractor(config.AttachmentsConfig{})
	_, err := e.ExtractText(context.Background(), path)
	require.Error(t, err)
}

func TestLoadWAVFile_DecodesMonoPCM16(t *testing.T) {
	dir := t.TempDir()
	monoPath := filepath.Join(dir, "mono.wav")
	writeSilentWAV(t, monoPath)

	samples, err := loadWAVFile(monoPath)
	require.NoError(t, err)
	require.Len(t, samples, 4)
}

func TestLoadWAVFile_RejectsNonRIFFFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-wav.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a real wav file at all"), 0o644))

	_, err := loadWAVFile(path)
	require.Error(t, err)
}

// writeSilentWAV writes a minimal 16-bit mono PCM WAV with four zero samples.
func writeSilentWAV(t *testing.T, path string) {
	t.Helper()
	samples := []int16{0, 0, 0, 0}
	dataSize := uint32(len(samples) * 2)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    16000,
		ByteRate:      16000 * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	require.NoError(t, binary.Write(f, binary.LittleEndian, header))
	require.NoError(t, binary.Write(f, binary.LittleEndian, samples))
}
