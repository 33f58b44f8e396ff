//go:build !linux

package rtc

import (
	"errors"

	"github.com/pion/mediadevices"
)

var errCaptureUnsupported = errors.New("rtc: media capture not supported on this platform")

func newCodecSelector() (*mediadevices.CodecSelector, error) {
	return nil, errCaptureUnsupported
}

func getUserMedia(_ *mediadevices.CodecSelector) (mediadevices.MediaStream, error) {
	return nil, errCaptureUnsupported
}
