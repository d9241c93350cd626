package encoder

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// WavEncoder buffers PCM and emits the whole RIFF file as one chunk on Close,
// since the header sizes are only known at the end.
type WavEncoder struct {
	onChunk     ChunkFunc
	buf         writerseeker.WriterSeeker
	enc         *wav.Encoder
	totalFrames uint64
	encodeTime  time.Duration
	closed      bool
	mu          sync.Mutex
}

func NewWav(onChunk ChunkFunc) (*WavEncoder, error) {
	e := &WavEncoder{onChunk: onChunk}
	e.enc = wav.NewEncoder(&e.buf, SampleRate, BitsPerSample, Channels, 1)
	return e, nil
}

func (e *WavEncoder) MimeType() string { return MimeWAV }

func (e *WavEncoder) EncodeBlock(block []int16) error {
	if len(block) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("wav encoder closed")
	}

	start := time.Now()
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	err := e.enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	})
	e.encodeTime += time.Since(start)
	if err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.totalFrames == 0 {
		return nil
	}
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	data, err := io.ReadAll(e.buf.BytesReader())
	if err != nil {
		return fmt.Errorf("reading wav buffer: %w", err)
	}
	if e.onChunk != nil {
		e.onChunk(data)
	}
	return nil
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WavEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}
