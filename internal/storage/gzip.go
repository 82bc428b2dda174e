package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"
)

// DecompressGzip replaces a gzip-compressed stored file by its content.
// progress receives 0..99 while bytes are written when expectedSize is known.
func (s *LocalStore) DecompressGzip(id string, expectedSize int64, progress func(float64)) error {
	path, err := s.GetFilePath(id)
	if err != nil {
		return err
	}

	compressed, err := os.Open(path)
	if err != nil {
		return err
	}
	defer compressed.Close()

	magic := make([]byte, 2)
	if _, err := io.ReadFull(compressed, magic); err != nil {
		return err
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return fmt.Errorf("not a gzip file")
	}
	if _, err := compressed.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader, err := gzip.NewReader(compressed)
	if err != nil {
		return err
	}
	defer reader.Close()

	tempPath := path + ".decompressing"
	out, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	buf := make([]byte, 1024*1024)
	var written int64
	lastUpdate := time.Now()
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				os.Remove(tempPath)
				return fmt.Errorf("write error: %w", err)
			}
			written += int64(n)

			if progress != nil && expectedSize > 0 && time.Since(lastUpdate) > 100*time.Millisecond {
				p := float64(written) / float64(expectedSize) * 100
				if p > 99 {
					p = 99
				}
				progress(p)
				lastUpdate = time.Now()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				out.Close()
				os.Remove(tempPath)
				return fmt.Errorf("read error: %w", readErr)
			}
			break
		}
	}
	out.Close()

	if expectedSize > 0 && written != expectedSize {
		os.Remove(tempPath)
		return fmt.Errorf("decompressed size mismatch: got %d bytes, expected %d bytes", written, expectedSize)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}

	s.mu.Lock()
	if info, ok := s.files[id]; ok {
		info.Size = written
		s.saveIndexLocked()
	}
	s.mu.Unlock()
	return nil
}
