package stt

import (
	"encoding/binary"
	"os"

	"github.com/yungbote/clipindex/internal/indexerrors"
)

const wavHeaderSize = 44
const sampleRate = 16000
const bytesPerSample = 2 // 16-bit mono PCM

// readWavWindow extracts raw PCM bytes for [start, end) seconds from a
// 16kHz mono 16-bit WAV file, re-wrapped with a fresh header so it's a
// standalone valid WAV the engine can decode.
func readWavWindow(path string, start, end float64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &indexerrors.AudioFileNotFoundError{Path: path}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &indexerrors.AudioFileNotFoundError{Path: path}
	}
	dataSize := info.Size() - wavHeaderSize
	if dataSize < 0 {
		dataSize = 0
	}

	startByte := int64(start*sampleRate) * bytesPerSample
	endByte := int64(end*sampleRate) * bytesPerSample
	if endByte > dataSize {
		endByte = dataSize
	}
	if startByte > endByte {
		startByte = endByte
	}

	buf := make([]byte, endByte-startByte)
	if len(buf) > 0 {
		if _, err := f.ReadAt(buf, wavHeaderSize+startByte); err != nil {
			return nil, &indexerrors.AudioFileNotFoundError{Path: path}
		}
	}
	return wrapPCMAsWav(buf), nil
}

func wrapPCMAsWav(pcm []byte) []byte {
	header := make([]byte, wavHeaderSize)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], sampleRate*bytesPerSample)
	binary.LittleEndian.PutUint16(header[32:34], bytesPerSample)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))
	return append(header, pcm...)
}
