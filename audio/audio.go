package audio

import (
	"errors"
	"strings"
)

const WAVHeaderSize = 44

var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("microphone unavailable")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var permissionKeywords = []string{
	"permission", "access denied", "not authorized", "not permitted", "unauthorized",
}

// classify maps a backend error onto the capture error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	lower := strings.ToLower(err.Error())
	for _, kw := range permissionKeywords {
		if strings.Contains(lower, kw) {
			return errors.Join(ErrPermissionDenied, err)
		}
	}
	return errors.Join(ErrDeviceUnavailable, err)
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Clip is a finished recording. The zero value is an empty clip.
type Clip struct {
	data     []byte
	mimeType string
}

func NewClip(data []byte, mimeType string) Clip {
	return Clip{data: append([]byte(nil), data...), mimeType: mimeType}
}

// Bytes returns a copy of the encoded audio.
func (c Clip) Bytes() []byte    { return append([]byte(nil), c.data...) }
func (c Clip) MimeType() string { return c.mimeType }
func (c Clip) Len() int         { return len(c.data) }
