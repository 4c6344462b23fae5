package realtime

import (
	"encoding/base64"
	"encoding/binary"
	"sync"
)

const pcm16Max = 32767

// Float32ToPCM16 converts a slice of samples in [-1.0, 1.0] to
// little-endian signed 16-bit PCM bytes.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * pcm16Max)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM bytes back
// to samples in [-1.0, 1.0]. Trailing odd bytes are ignored.
func PCM16ToFloat32(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / pcm16Max
	}
	return out
}

// Decimate halves the sample rate by dropping every other sample, per
// spec.md §4.3's capture contract (48kHz host rate -> 24kHz wire
// rate, no anti-alias filter).
func Decimate(samples []float32) []float32 {
	out := make([]float32, (len(samples)+1)/2)
	for i := range out {
		out[i] = samples[i*2]
	}
	return out
}

// Upsample doubles the sample rate by duplicating each sample, per
// spec.md §4.3's playback contract (24kHz wire rate -> 48kHz host
// rate).
func Upsample(samples []float32) []float32 {
	out := make([]float32, len(samples)*2)
	for i, s := range samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// EncodeAudioFrame base64-encodes a PCM16 chunk for an
// input_audio_buffer.append frame.
func EncodeAudioFrame(samples []float32) string {
	return base64.StdEncoding.EncodeToString(Float32ToPCM16(Decimate(samples)))
}

// DecodeAudioDelta base64-decodes an inbound response.audio.delta
// payload into float32 samples at wire rate.
func DecodeAudioDelta(b64 string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return PCM16ToFloat32(raw), nil
}

// CaptureBuffer accumulates outbound microphone samples between
// 20ms send windows. Guarded by its own mutex; the capture callback
// uses TryLock and drops the frame on contention, per spec.md §4.3 and
// §9's "audio callback reentrancy" note — it must never block.
type CaptureBuffer struct {
	mu      sync.Mutex
	samples []float32
	muted   bool
}

// Push appends samples captured by the hardware callback. Returns
// false (frame dropped) if the buffer is contended or the mic is
// muted.
func (b *CaptureBuffer) Push(samples []float32) bool {
	if !b.mu.TryLock() {
		return false
	}
	defer b.mu.Unlock()
	if b.muted {
		return false
	}
	b.samples = append(b.samples, samples...)
	return true
}

// Drain removes and returns every buffered sample, blocking briefly
// for the session task (not a hardware callback) to acquire the lock.
func (b *CaptureBuffer) Drain() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.samples
	b.samples = nil
	return out
}

// SetMuted enables or disables capture.
func (b *CaptureBuffer) SetMuted(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted = muted
	if muted {
		b.samples = nil
	}
}

// PlaybackBuffer is a FIFO of synthesized audio samples awaiting
// output. The output callback drains it with TryLock, per spec.md
// §4.3 and §9.
type PlaybackBuffer struct {
	mu      sync.Mutex
	samples []float32
	pos     int
}

// Enqueue appends newly decoded samples, blocking briefly (called from
// the session task consuming WebSocket frames, not the audio
// callback).
func (b *PlaybackBuffer) Enqueue(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, samples...)
}

// read returns up to n samples starting at the current playback
// position and advances past them; NextOutputFrame upsamples them by
// factor 2 and replicates them across channels. Returns nil (frame
// dropped, caller emits silence) on lock contention or when nothing is
// buffered.
func (b *PlaybackBuffer) read(n int) []float32 {
	if !b.mu.TryLock() {
		return nil
	}
	defer b.mu.Unlock()
	remaining := len(b.samples) - b.pos
	if remaining <= 0 {
		return nil
	}
	if n > remaining {
		n = remaining
	}
	out := append([]float32(nil), b.samples[b.pos:b.pos+n]...)
	b.pos += n
	// Keep memory bounded: compact once fully consumed.
	if b.pos == len(b.samples) {
		b.samples = nil
		b.pos = 0
	}
	return out
}

// Clear empties the buffer immediately, per the interruption policy
// in spec.md §4.3: SpeechStarted while interruption is enabled clears
// playback mid-utterance.
func (b *PlaybackBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
	b.pos = 0
}

// IsEmpty reports whether every buffered sample has been consumed.
func (b *PlaybackBuffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos >= len(b.samples)
}

// NextOutputFrame produces n host-rate samples per output channel by
// reading n/2 wire-rate samples from the buffer, upsampling by
// duplication, then replicating across channels. Returns silence
// (zeroed) if the buffer is empty or contended.
func (b *PlaybackBuffer) NextOutputFrame(n, channels int) []float32 {
	wireSamples := b.read((n + 1) / 2)
	upsampled := Upsample(wireSamples)
	out := make([]float32, n*channels)
	for i := 0; i < n && i < len(upsampled); i++ {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = upsampled[i]
		}
	}
	return out
}
