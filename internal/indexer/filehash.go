package indexer

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/yungbote/clipindex/internal/indexerrors"
)

const quickHashRegionSize = 64 * 1024

// ComputeQuickHash is the "128-bit quick hash over head+tail regions"
// of §3: md5 over the file size plus up to 64KB from the start and end
// of the file, avoiding a full read of potentially multi-gigabyte
// video files while still detecting almost all content changes.
func ComputeQuickHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &indexerrors.InputFileNotFoundError{Path: path}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", indexerrors.NewStorageError("stat", err)
	}
	size := info.Size()

	h := md5.New()
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])

	head := make([]byte, min64(quickHashRegionSize, size))
	if _, err := io.ReadFull(f, head); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", indexerrors.NewStorageError("read-head", err)
	}
	h.Write(head)

	if size > quickHashRegionSize {
		tailStart := size - quickHashRegionSize
		if tailStart < quickHashRegionSize {
			tailStart = quickHashRegionSize // avoid re-hashing overlap on small files
		}
		if _, err := f.Seek(tailStart, io.SeekStart); err != nil {
			return "", indexerrors.NewStorageError("seek-tail", err)
		}
		tail := make([]byte, size-tailStart)
		if _, err := io.ReadFull(f, tail); err != nil {
			return "", indexerrors.NewStorageError("read-tail", err)
		}
		h.Write(tail)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func min64(a int, b int64) int64 {
	if int64(a) < b {
		return int64(a)
	}
	return b
}
