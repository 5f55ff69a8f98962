package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	wavHeaderSize  = 44
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// ErrNotWAV is returned when a file does not carry a RIFF/WAVE PCM header.
var ErrNotWAV = errors.New("not a PCM wav file")

// wavWriter appends PCM to disk and keeps the RIFF header current so a file
// interrupted at any point is still playable up to the last sync.
type wavWriter struct {
	file       *os.File
	sampleRate int
	channels   int
	dataBytes  int64

	syncEvery time.Duration
	lastSync  time.Time
	now       func() time.Time
}

func createWAV(path string, sampleRate, channels int, syncEvery time.Duration) (*wavWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	w := &wavWriter{
		file:       file,
		sampleRate: sampleRate,
		channels:   channels,
		syncEvery:  syncEvery,
		now:        time.Now,
	}
	if _, err := file.Write(wavHeader(sampleRate, channels, 0)); err != nil {
		_ = file.Close()
		return nil, err
	}
	w.lastSync = w.now()
	return w, nil
}

func (w *wavWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.dataBytes += int64(n)
	if err != nil {
		return n, err
	}
	if w.syncEvery > 0 && w.now().Sub(w.lastSync) >= w.syncEvery {
		if err := w.syncHeader(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (w *wavWriter) syncHeader() error {
	if _, err := w.file.WriteAt(wavHeader(w.sampleRate, w.channels, w.dataBytes), 0); err != nil {
		return err
	}
	w.lastSync = w.now()
	return w.file.Sync()
}

// Close writes the final header and closes the file.
func (w *wavWriter) Close() error {
	syncErr := w.syncHeader()
	closeErr := w.file.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

func (w *wavWriter) Duration() time.Duration {
	return pcmDuration(w.dataBytes, w.sampleRate, w.channels)
}

func pcmDuration(dataBytes int64, sampleRate, channels int) time.Duration {
	frameBytes := int64(channels * bytesPerSample)
	if sampleRate <= 0 || frameBytes <= 0 {
		return 0
	}
	frames := dataBytes / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

func wavHeader(sampleRate, channels int, dataBytes int64) []byte {
	if dataBytes > 0xFFFFFFFF-36 {
		dataBytes = 0xFFFFFFFF - 36
	}
	blockAlign := channels * bytesPerSample
	header := make([]byte, wavHeaderSize)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataBytes))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1)
	binary.LittleEndian.PutUint16(header[22:], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:], bitsPerSample)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(dataBytes))
	return header
}

// WAVInfo describes the PCM payload of a wav file.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataOffset    int64
	DataBytes     int64
}

func (i WAVInfo) blockAlign() int64 {
	return int64(i.Channels * i.BitsPerSample / 8)
}

// Duration returns the playback length of the payload.
func (i WAVInfo) Duration() time.Duration {
	align := i.blockAlign()
	if align <= 0 || i.SampleRate <= 0 {
		return 0
	}
	return time.Duration(i.DataBytes/align) * time.Second / time.Duration(i.SampleRate)
}

// ReadWAVInfo walks the RIFF chunks of path and locates the PCM data.
// A data size of zero or past end of file is treated as "until EOF", which is
// what a header interrupted before its final sync looks like.
func ReadWAVInfo(path string) (WAVInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return WAVInfo{}, err
	}
	size := stat.Size()

	var riff [12]byte
	if _, err := io.ReadFull(file, riff[:]); err != nil {
		return WAVInfo{}, ErrNotWAV
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WAVInfo{}, ErrNotWAV
	}

	var info WAVInfo
	offset := int64(12)
	haveFormat := false
	for offset+8 <= size {
		var chunk [8]byte
		if _, err := file.ReadAt(chunk[:], offset); err != nil {
			return WAVInfo{}, err
		}
		id := string(chunk[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if chunkSize < 16 {
				return WAVInfo{}, ErrNotWAV
			}
			var fmtChunk [16]byte
			if _, err := file.ReadAt(fmtChunk[:], body); err != nil {
				return WAVInfo{}, err
			}
			audioFormat := binary.LittleEndian.Uint16(fmtChunk[0:2])
			// 1 = PCM, 0xFFFE = WAVE_FORMAT_EXTENSIBLE (ffmpeg for >2 channels).
			if audioFormat != 1 && audioFormat != 0xFFFE {
				return WAVInfo{}, fmt.Errorf("%w: format tag %d", ErrNotWAV, audioFormat)
			}
			info.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
			haveFormat = true
		case "data":
			if !haveFormat {
				return WAVInfo{}, ErrNotWAV
			}
			info.DataOffset = body
			info.DataBytes = chunkSize
			if chunkSize == 0 || body+chunkSize > size {
				info.DataBytes = size - body
			}
			return info, nil
		}

		offset = body + chunkSize + chunkSize%2
	}
	return WAVInfo{}, ErrNotWAV
}

// WAVChunk is one piece of a split wav file.
type WAVChunk struct {
	Path   string
	Offset time.Duration
}

// SplitWAV copies consecutive slices of at most span playback time from path
// into standalone wav files under dir. When maxFileBytes is positive no chunk
// file, header included, is larger than it.
func SplitWAV(path, dir string, span time.Duration, maxFileBytes int64) ([]WAVChunk, error) {
	info, err := ReadWAVInfo(path)
	if err != nil {
		return nil, err
	}
	if info.BitsPerSample != bitsPerSample {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrNotWAV, info.BitsPerSample)
	}
	align := info.blockAlign()
	if align <= 0 || info.SampleRate <= 0 {
		return nil, ErrNotWAV
	}
	chunkBytes := int64(span) * int64(info.SampleRate) / int64(time.Second) * align
	if maxFileBytes > 0 {
		chunkBytes = min(chunkBytes, maxFileBytes-wavHeaderSize)
	}
	chunkBytes -= chunkBytes % align
	if chunkBytes <= 0 {
		return nil, fmt.Errorf("chunk span %s with a %d byte limit holds no audio", span, maxFileBytes)
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	base := filepath.Base(path)
	base = base[:len(base)-len(filepath.Ext(base))]

	var chunks []WAVChunk
	for start, index := int64(0), 0; start < info.DataBytes; start, index = start+chunkBytes, index+1 {
		length := min(chunkBytes, info.DataBytes-start)
		length -= length % align
		if length <= 0 {
			break
		}
		out := filepath.Join(dir, fmt.Sprintf("%s_chunk%03d.wav", base, index))
		if err := writeWAVSlice(src, info, start, length, out); err != nil {
			return nil, err
		}
		chunks = append(chunks, WAVChunk{
			Path:   out,
			Offset: pcmDuration(start, info.SampleRate, info.Channels),
		})
	}
	return chunks, nil
}

func writeWAVSlice(src *os.File, info WAVInfo, start, length int64, out string) error {
	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := dst.Write(wavHeader(info.SampleRate, info.Channels, length)); err != nil {
		_ = dst.Close()
		return err
	}
	section := io.NewSectionReader(src, info.DataOffset+start, length)
	if _, err := io.Copy(dst, section); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
