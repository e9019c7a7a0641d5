// Package attachments extracts plain text from uploaded files so the
// conversation nodes and summarizer can reason over attachment content.
// HTML is reduced to its main article and converted to Markdown; audio is
// transcribed with a local whisper.cpp model; everything else is read as
// plain text.
package attachments

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/northstar-market/concierge/internal/config"
	"github.com/northstar-market/concierge/internal/observability"
)

var htmlExts = map[string]bool{".html": true, ".htm": true, ".xhtml": true}

// Extractor implements facade.AttachmentService.
type Extractor struct {
	cfg config.AttachmentsConfig

	mu     sync.Mutex
	model  whisper.Model
	loaded bool
}

// NewExtractor builds an Extractor. The whisper model, if configured, is
// loaded lazily on first audio attachment rather than at startup.
func NewExtractor(cfg config.AttachmentsConfig) *Extractor {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 20000
	}
	return &Extractor{cfg: cfg}
}

// ExtractText dispatches on the attachment's extension and returns
// best-effort text content, truncated to the configured maximum.
func (e *Extractor) ExtractText(ctx context.Context, filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var (
		text string
		err  error
	)
	switch {
	case htmlExts[ext]:
		text, err = e.extractHTML(filePath)
	case ext == ".wav":
		text, err = e.extractAudio(ctx, filePath)
	default:
		text, err = e.extractPlainText(filePath)
	}
	if err != nil {
		return "", err
	}
	return truncateChars(text, e.cfg.MaxChars), nil
}

func (e *Extractor) extractPlainText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("attachments: read file: %w", err)
	}
	return string(data), nil
}

func (e *Extractor) extractHTML(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("attachments: read html file: %w", err)
	}

	html := string(data)
	articleHTML := html
	title := ""

	art, rerr := readability.FromReader(strings.NewReader(html), nil)
	if rerr == nil && strings.TrimSpace(art.Content) != "" {
		articleHTML = art.Content
		title = strings.TrimSpace(art.Title)
	}

	md, err := htmltomarkdown.ConvertString(articleHTML)
	if err != nil {
		return "", fmt.Errorf("attachments: html to markdown: %w", err)
	}
	md = strings.TrimSpace(md)
	if title != "" && !strings.HasPrefix(md, "# ") {
		md = "# " + title + "\n\n" + md
	}
	return md, nil
}

func (e *Extractor) extractAudio(ctx context.Context, filePath string) (string, error) {
	if strings.TrimSpace(e.cfg.WhisperModelPath) == "" {
		return "", fmt.Errorf("attachments: no whisper model configured, cannot transcribe audio")
	}
	model, err := e.whisperModel()
	if err != nil {
		return "", err
	}

	samples, err := loadWAVFile(filePath)
	if err != nil {
		return "", fmt.Errorf("attachments: load wav: %w", err)
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("attachments: whisper context: %w", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("attachments: whisper process: %w", err)
	}

	var b strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.TrimSpace(segment.Text))
	}

	observability.LoggerWithTrace(ctx).Info().Str("file", filePath).Msg("attachment_transcribed")
	return b.String(), nil
}

func (e *Extractor) whisperModel() (whisper.Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return e.model, nil
	}
	m, err := whisper.New(e.cfg.WhisperModelPath)
	if err != nil {
		return nil, fmt.Errorf("attachments: load whisper model: %w", err)
	}
	e.model = m
	e.loaded = true
	return m, nil
}

// Close releases the whisper model, if loaded.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil
	}
	e.loaded = false
	return e.model.Close()
}

func truncateChars(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// wavHeader mirrors the canonical 44-byte PCM WAV header.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// loadWAVFile reads a PCM WAV file into float32 samples in [-1, 1], downmixed
// to mono. whisper.cpp expects 16kHz audio; callers providing other sample
// rates get degraded transcription quality, not an error.
func loadWAVFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	var header wavHeader
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("not a valid wav file")
	}

	audioData := make([]byte, header.Subchunk2Size)
	if _, err := io.ReadFull(f, audioData); err != nil {
		return nil, fmt.Errorf("read wav data: %w", err)
	}

	var samples []float32
	switch header.BitsPerSample {
	case 16:
		for i := 0; i+1 < len(audioData); i += 2 {
			v := int16(binary.LittleEndian.Uint16(audioData[i : i+2]))
			samples = append(samples, float32(v)/32768.0)
		}
	case 32:
		for i := 0; i+3 < len(audioData); i += 4 {
			bits := binary.LittleEndian.Uint32(audioData[i : i+4])
			samples = append(samples, *(*float32)(unsafe.Pointer(&bits)))
		}
	default:
		return nil, fmt.Errorf("unsupported bits per sample: %d", header.BitsPerSample)
	}

	if header.NumChannels == 2 {
		mono := make([]float32, len(samples)/2)
		for i := range mono {
			mono[i] = (samples[i*2] + samples[i*2+1]) / 2.0
		}
		samples = mono
	}

	return samples, nil
}
