package util

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
)

// PCM16BytesPerMS returns the byte size of one millisecond of 16-bit
// mono PCM at the given sample rate.
func PCM16BytesPerMS(sampleRate int) int {
	return sampleRate * 2 / 1000
}

// PCMDurationMS returns the duration of a 16-bit mono PCM buffer.
func PCMDurationMS(data []byte, sampleRate int) int {
	perMS := PCM16BytesPerMS(sampleRate)
	if perMS == 0 {
		return 0
	}
	return len(data) / perMS
}

// RMSEnergy computes the normalized root mean square of a 16-bit mono
// PCM buffer, in the range [0, 1].
func RMSEnergy(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sum float64
	n := len(data) / 2
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		f := float64(sample) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}

// ChunkPCM splits a PCM buffer into frames of at most maxMS milliseconds.
// The final frame may be shorter. Empty input yields no frames.
func ChunkPCM(data []byte, sampleRate, maxMS int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	frameBytes := PCM16BytesPerMS(sampleRate) * maxMS
	if frameBytes <= 0 {
		return [][]byte{data}
	}
	// Keep sample alignment.
	if frameBytes%2 != 0 {
		frameBytes--
	}
	var frames [][]byte
	for len(data) > frameBytes {
		frames = append(frames, data[:frameBytes])
		data = data[frameBytes:]
	}
	frames = append(frames, data)
	return frames
}

// EncodeWAV writes 16-bit mono PCM to w with a standard RIFF header.
func EncodeWAV(w io.Writer, pcm []byte, sampleRate int) error {
	header := make([]byte, 44)
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * 2)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

// WriteWAV writes 16-bit mono PCM to path, creating parent directories
// as needed.
func WriteWAV(path string, pcm []byte, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeWAV(f, pcm, sampleRate)
}
