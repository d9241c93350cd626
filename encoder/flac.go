package encoder

import (
	"fmt"
	"sync"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacEncoder streams verbatim FLAC frames. The stream header is written with
// the first block, so a recorder that never sees audio emits nothing.
type FlacEncoder struct {
	out         chunkWriter
	enc         *flac.Encoder
	totalFrames uint64
	encodeTime  time.Duration
	mu          sync.Mutex
}

func NewFlac(onChunk ChunkFunc) (*FlacEncoder, error) {
	return &FlacEncoder{out: chunkWriter{onChunk: onChunk}}, nil
}

func (e *FlacEncoder) MimeType() string { return MimeFLAC }

func (e *FlacEncoder) start() error {
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(&e.out, info)
	if err != nil {
		return fmt.Errorf("creating flac encoder: %w", err)
	}
	e.enc = enc
	return nil
}

func (e *FlacEncoder) EncodeBlock(block []int16) error {
	if len(block) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() { e.encodeTime += time.Since(start) }()

	if e.enc == nil {
		if err := e.start(); err != nil {
			return err
		}
	}

	samples := make([]int32, len(block))
	for i, s := range block {
		samples[i] = int32(s)
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	}

	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *FlacEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enc == nil {
		return nil
	}
	return e.enc.Close()
}

// Size reports how many container bytes have been emitted.
func (e *FlacEncoder) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out.written
}

func (e *FlacEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *FlacEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}
