package mixer

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stretch/dsp/buffer"
	"github.com/cwbudde/algo-stretch/dsp/core"
	"github.com/cwbudde/algo-stretch/dsp/stretch"
)

const defaultMaxBlockFrames = 4096

// Config describes the output format of a Mixer.
type Config struct {
	Channels   int
	SampleRate int
	// MaxBlockFrames bounds the input frames read per Render call. Zero
	// selects 4096.
	MaxBlockFrames int
	Preset         Preset
	// Seed fixes the stretcher's random phase steps. Zero seeds from the
	// clock.
	Seed int64
	// Logger receives state transitions. Nil uses the standard logger.
	Logger *logrus.Entry
}

type track struct {
	src    Source
	volume float64
	active bool
}

// Mixer sums sources and plays them back at a variable rate.
type Mixer struct {
	mu sync.Mutex

	log        *logrus.Entry
	channels   int
	sampleRate int
	maxFrames  int

	tracks  []track
	longest int

	stretcher  *stretch.Stretcher
	rate       float64
	transposed bool
	state      State
	closed     bool

	mix     *buffer.Frames
	read    []float64
	scaled  []float64
	history []float64
}

// New creates a stopped Mixer over sources, which must all have
// cfg.Channels channels. The longest source drives the timeline.
func New(cfg Config, sources ...Source) (*Mixer, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	if cfg.Channels <= 0 || cfg.SampleRate <= 0 || cfg.MaxBlockFrames < 0 {
		return nil, fmt.Errorf("%w: channels=%d sampleRate=%d maxBlockFrames=%d",
			ErrInvalidConfig, cfg.Channels, cfg.SampleRate, cfg.MaxBlockFrames)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources", ErrInvalidConfig)
	}

	maxFrames := cfg.MaxBlockFrames
	if maxFrames == 0 {
		maxFrames = defaultMaxBlockFrames
	}

	tracks := make([]track, len(sources))
	longest := 0
	for i, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("%w: source %d is nil", ErrInvalidConfig, i)
		}

		if src.Channels() != cfg.Channels {
			return nil, fmt.Errorf("%w: source %d has %d channels, want %d",
				ErrInvalidConfig, i, src.Channels(), cfg.Channels)
		}

		tracks[i] = track{src: src, volume: 1, active: true}
		if src.Length() > sources[longest].Length() {
			longest = i
		}
	}

	var opts []stretch.Option
	if cfg.Seed != 0 {
		opts = append(opts, stretch.WithSeed(cfg.Seed))
	}

	st := stretch.New(opts...)

	var err error
	switch cfg.Preset {
	case PresetDefault:
		err = st.PresetDefault(cfg.Channels, float64(cfg.SampleRate))
	case PresetCheaper:
		err = st.PresetCheaper(cfg.Channels, float64(cfg.SampleRate))
	default:
		err = fmt.Errorf("unknown preset %v", cfg.Preset)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	mix, err := buffer.New(cfg.Channels, maxFrames)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	samples := maxFrames * cfg.Channels
	m := &Mixer{
		log:        log,
		channels:   cfg.Channels,
		sampleRate: cfg.SampleRate,
		maxFrames:  maxFrames,
		tracks:     tracks,
		longest:    longest,
		stretcher:  st,
		rate:       1,
		state:      StateStopped,
		mix:        mix,
		read:       make([]float64, samples),
		scaled:     make([]float64, samples),
		history:    make([]float64, st.InputLatency()*cfg.Channels),
	}

	log.WithFields(logrus.Fields{
		"function":    "New",
		"sources":     len(sources),
		"channels":    cfg.Channels,
		"sample_rate": cfg.SampleRate,
		"preset":      cfg.Preset.String(),
		"longest":     longest,
		"block":       st.BlockSamples(),
		"interval":    st.IntervalSamples(),
	}).Debug("Mixer created")

	return m, nil
}

// Render writes frames interleaved frames to out. A Mixer that is not
// playing renders silence. At rate 1 without transposition the sources are
// summed directly; otherwise frames*rate input frames are stretched into
// frames output frames. When the longest source has ended the stretcher tail is flushed
// once and the Mixer finishes.
func (m *Mixer) Render(out []float64, frames int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if frames < 0 || len(out) < frames*m.channels {
		return fmt.Errorf("%w: %d samples for %d frames of %d channels",
			ErrShortBuffer, len(out), frames, m.channels)
	}

	if frames > m.maxFrames {
		return fmt.Errorf("%w: %d frames, capacity %d", ErrScratchOverflow, frames, m.maxFrames)
	}

	out = out[:frames*m.channels]
	clear(out)

	if m.state != StatePlaying {
		return nil
	}

	if !m.stretching() {
		if err := m.mixSources(out, frames); err != nil {
			return err
		}

		if !m.tracks[m.longest].active {
			m.setState(StateFinished, "Render")
		}

		return nil
	}

	want := int(float64(frames) * m.rate)
	if want > m.maxFrames {
		return fmt.Errorf("%w: %d input frames at rate %v, capacity %d",
			ErrScratchOverflow, want, m.rate, m.maxFrames)
	}

	m.mix.Resize(want)
	m.mix.Zero()
	mix := m.mix.Samples()

	if err := m.mixSources(mix, want); err != nil {
		return err
	}

	if !m.tracks[m.longest].active {
		if err := m.stretcher.Flush(out, frames); err != nil {
			return err
		}

		m.setState(StateFinished, "Render")

		return nil
	}

	return m.stretcher.Process(mix, want, out, frames)
}

// mixSources adds frames frames of every active source into dst. Sources
// that return no frames are deactivated.
func (m *Mixer) mixSources(dst []float64, frames int) error {
	buf := m.read[:frames*m.channels]

	for i := range m.tracks {
		t := &m.tracks[i]
		if !t.active {
			continue
		}

		n, err := readFull(t.src, buf)
		if err != nil {
			return fmt.Errorf("mixer: source %d: %w", i, err)
		}

		if n == 0 {
			t.active = false
			m.log.WithFields(logrus.Fields{
				"function": "Render",
				"source":   i,
			}).Debug("Source ended")

			continue
		}

		if err := core.MixInto(dst, buf[:n*m.channels], m.scaled, t.volume); err != nil {
			return err
		}
	}

	return nil
}

// readFull reads until dst is full or the source ends.
func readFull(src Source, dst []float64) (int, error) {
	channels := src.Channels()
	total := 0

	for total*channels < len(dst) {
		n, err := src.ReadFrames(dst[total*channels:])
		total += n

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return total, err
		}

		if n == 0 {
			break
		}
	}

	return total, nil
}

// SetPlaybackRate changes the speed. Rates above 1 play faster. The
// stretcher is re-seeded from the audio just ahead of the cursor so the
// new rate starts without a gap.
func (m *Mixer) SetPlaybackRate(rate float64) error {
	if !core.IsFinitePositive(rate) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if rate == m.rate {
		return nil
	}

	m.rate = rate

	if err := m.primeStretcher(); err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"function": "SetPlaybackRate",
		"rate":     rate,
	}).Debug("Playback rate changed")

	return nil
}

// PlaybackRate returns the current rate.
func (m *Mixer) PlaybackRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rate
}

// SetTransposeSemitones shifts the pitch. tonalityLimit is a fraction of
// the sample rate, see stretch.Stretcher.SetTransposeFactor. A non-zero
// shift routes playback through the stretcher even at rate 1.
func (m *Mixer) SetTransposeSemitones(semitones, tonalityLimit float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if err := m.stretcher.SetTransposeSemitones(semitones, tonalityLimit); err != nil {
		return err
	}

	was := m.stretching()
	m.transposed = semitones != 0

	if !was && m.stretching() {
		return m.primeStretcher()
	}

	return nil
}

func (m *Mixer) stretching() bool {
	return m.rate != 1 || m.transposed
}

// primeStretcher reads the input latency ahead of the longest source's
// cursor, restores the cursor and seeks the stretcher with that audio.
func (m *Mixer) primeStretcher() error {
	t := &m.tracks[m.longest]

	n := 0
	if t.active {
		cursor := t.src.Position()

		var err error
		n, err = readFull(t.src, m.history)
		if err != nil {
			return fmt.Errorf("mixer: source %d: %w", m.longest, err)
		}

		if err := t.src.SeekFrame(cursor); err != nil {
			return fmt.Errorf("mixer: source %d: %w", m.longest, err)
		}
	}

	return m.stretcher.Seek(m.history, n, m.rate)
}

// SeekFrame moves every source to frame. Negative frames seek to 0.
// Sources that had ended are reactivated when frame is before their end.
func (m *Mixer) SeekFrame(frame int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	return m.seekLocked(max(frame, 0))
}

func (m *Mixer) seekLocked(frame int64) error {
	for i := range m.tracks {
		t := &m.tracks[i]
		if err := t.src.SeekFrame(frame); err != nil {
			return fmt.Errorf("mixer: source %d: %w", i, err)
		}

		if frame < t.src.Length() {
			t.active = true
		}
	}

	if m.state == StateFinished && m.tracks[m.longest].active {
		m.setState(StateStopped, "SeekFrame")
	}

	if m.stretching() {
		return m.primeStretcher()
	}

	return nil
}

// Position returns the playback position of the longest source, or 0 once
// it has ended.
func (m *Mixer) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tracks[m.longest]
	if !t.active {
		return 0
	}

	return m.framesToDuration(t.src.Position())
}

// Duration returns the length of the longest source, or 0 once it has
// ended.
func (m *Mixer) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tracks[m.longest]
	if !t.active {
		return 0
	}

	return m.framesToDuration(t.src.Length())
}

func (m *Mixer) framesToDuration(frames int64) time.Duration {
	return time.Duration(float64(frames) / float64(m.sampleRate) * float64(time.Second))
}

// SetVolume sets the linear gain of source index.
func (m *Mixer) SetVolume(index int, volume float64) error {
	if !core.IsFinite(volume) {
		return fmt.Errorf("%w: volume %v", ErrInvalidConfig, volume)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex(index); err != nil {
		return err
	}

	m.tracks[index].volume = volume

	return nil
}

// Deactivate stops mixing source index until the next seek before its end.
func (m *Mixer) Deactivate(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex(index); err != nil {
		return err
	}

	m.tracks[index].active = false

	return nil
}

func (m *Mixer) checkIndex(index int) error {
	if m.closed {
		return ErrClosed
	}

	if index < 0 || index >= len(m.tracks) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(m.tracks))
	}

	return nil
}

// Start begins playback, rewinding first when playback had finished.
func (m *Mixer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if m.state == StateFinished {
		if err := m.seekLocked(0); err != nil {
			return err
		}
	}

	m.setState(StatePlaying, "Start")

	return nil
}

// Stop pauses playback. Render produces silence until Start.
func (m *Mixer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if m.state == StatePlaying {
		m.setState(StateStopped, "Stop")
	}

	return nil
}

// State returns the playback state.
func (m *Mixer) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Close releases the Mixer and closes sources that implement io.Closer.
// Closing twice is a no-op.
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.setState(StateUndefined, "Close")

	var errs []error
	for i := range m.tracks {
		if c, ok := m.tracks[i].src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("mixer: source %d: %w", i, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (m *Mixer) setState(state State, function string) {
	if m.state == state {
		return
	}

	m.log.WithFields(logrus.Fields{
		"function": function,
		"from":     m.state.String(),
		"to":       state.String(),
	}).Debug("Mixer state changed")

	m.state = state
}
