package encoder

import (
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	MimeFLAC = "audio/flac"
	MimeWAV  = "audio/wav"

	// DefaultMimeType is used when no preferred container is supported.
	DefaultMimeType = MimeWAV
)

// DefaultPriority is the container probe order used when none is configured.
var DefaultPriority = []string{"audio/webm", "audio/mp4", MimeFLAC, MimeWAV}

// ChunkFunc receives encoded container bytes in output order. The slice is
// owned by the receiver.
type ChunkFunc func(chunk []byte)

// Recorder turns PCM blocks into a container byte stream delivered as chunks.
type Recorder interface {
	EncodeBlock(block []int16) error
	// Close flushes pending data. All chunks are delivered before it returns.
	Close() error
	MimeType() string
	TotalFrames() uint64
	EncodeTime() time.Duration
}

type factory func(onChunk ChunkFunc) (Recorder, error)

var containers = map[string]factory{
	MimeFLAC: func(onChunk ChunkFunc) (Recorder, error) { return NewFlac(onChunk) },
	MimeWAV:  func(onChunk ChunkFunc) (Recorder, error) { return NewWav(onChunk) },
}

// IsSupported reports whether a recorder exists for the container type.
func IsSupported(mimeType string) bool {
	_, ok := containers[mimeType]
	return ok
}

// SelectMimeType returns the first supported container in priority order,
// falling back to DefaultMimeType.
func SelectMimeType(priority []string) string {
	for _, m := range priority {
		if IsSupported(m) {
			return m
		}
	}
	return DefaultMimeType
}

func New(mimeType string, onChunk ChunkFunc) (Recorder, error) {
	f, ok := containers[mimeType]
	if !ok {
		return nil, fmt.Errorf("unsupported container %q", mimeType)
	}
	return f(onChunk)
}

// chunkWriter forwards every write to a ChunkFunc as its own chunk.
type chunkWriter struct {
	onChunk ChunkFunc
	written int
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if w.onChunk != nil {
		w.onChunk(append([]byte(nil), p...))
	}
	w.written += len(p)
	return len(p), nil
}
