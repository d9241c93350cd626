//go:build darwin

package beep

import (
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

var (
	playMu   sync.Mutex
	ctxOnce  sync.Once
	malgoCtx *malgo.AllocatedContext
)

func play(samples []int16) {
	if len(samples) == 0 {
		return
	}
	ctxOnce.Do(func() {
		malgoCtx, _ = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	})
	if malgoCtx == nil {
		return
	}
	playMu.Lock()
	defer playMu.Unlock()

	data := toBytes(samples)
	pos := 0
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	// The callback runs on the audio thread; pos is only touched there.
	onData := func(out, _ []byte, _ uint32) {
		n := copy(out, data[pos:])
		pos += n
		clear(out[n:])
	}
	device, err := malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return
	}
	time.Sleep(time.Duration(len(samples))*time.Second/sampleRate + 50*time.Millisecond)
	device.Stop()
}
