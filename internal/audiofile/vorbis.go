package audiofile

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

func decodeVorbis(r io.ReadSeeker) (*Clip, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if format == nil || format.Channels <= 0 {
		return nil, fmt.Errorf("%w: missing Vorbis header", ErrDecode)
	}

	samples := make([]float64, len(data))
	for i, v := range data {
		samples[i] = float64(v)
	}

	return &Clip{Samples: samples, Channels: format.Channels, SampleRate: format.SampleRate}, nil
}
