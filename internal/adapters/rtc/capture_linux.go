//go:build linux

package rtc

import (
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
)

const videoBitrate = 1_500_000

func newCodecSelector() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = videoBitrate

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

// getUserMedia opens camera+microphone, degrading to audio-only when the
// camera is missing or busy. MJPEG camera nodes are excluded: malformed
// JPEG frames poison the VP8 encoder.
func getUserMedia(selector *mediadevices.CodecSelector) (mediadevices.MediaStream, error) {
	full := mediadevices.MediaStreamConstraints{
		Codec: selector,
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		},
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
	}
	stream, err := mediadevices.GetUserMedia(full)
	if err == nil {
		return stream, nil
	}
	audioOnly := mediadevices.MediaStreamConstraints{
		Codec: selector,
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
	}
	return mediadevices.GetUserMedia(audioOnly)
}
