package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelgen/internal/config"
)

// FileName is the log file written next to console output.
const FileName = "reelgen.log"

const pollInterval = 250 * time.Millisecond

// Path returns the log file location for cfg.
func Path(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, FileName)
}

// Options controls Tail.
type Options struct {
	// Offset is the byte position to resume from. Negative starts from the
	// last Lines lines of the file.
	Offset int64
	Lines  int
	// Wait bounds how long Tail blocks for new lines when nothing is pending.
	Wait time.Duration
	// Match keeps only lines containing the substring.
	Match string
}

// Chunk is one batch of lines and the offset to resume from.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields an empty chunk.
func Tail(ctx context.Context, path string, opts Options) (Chunk, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Chunk{}, nil
	case err != nil:
		return Chunk{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return Chunk{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var chunk Chunk
	if opts.Offset < 0 {
		chunk, err = lastLines(path, opts.Lines, opts.Match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Truncated or rotated; start over.
			offset = 0
		}
		chunk, err = readFrom(path, offset, opts.Match)
	}
	if err != nil || len(chunk.Lines) > 0 || opts.Wait <= 0 {
		return chunk, err
	}
	return waitFor(ctx, path, chunk.Offset, opts)
}

func lastLines(path string, limit int, match string) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	end, err := scan(file, match, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		count = min(count+1, limit)
	})
	if err != nil {
		return Chunk{}, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return Chunk{Lines: lines, Offset: end}, nil
}

func readFrom(path string, offset int64, match string) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	end, err := scan(file, match, func(line string) { lines = append(lines, line) })
	if err != nil {
		return Chunk{Offset: offset}, err
	}
	return Chunk{Lines: lines, Offset: end}, nil
}

// scan feeds matching lines to keep and returns the offset after the last read.
func scan(file *os.File, match string, keep func(string)) (int64, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if match == "" || strings.Contains(line, match) {
			keep(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return end, nil
}

func waitFor(ctx context.Context, path string, offset int64, opts Options) (Chunk, error) {
	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Chunk{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
		chunk, err := readFrom(path, offset, opts.Match)
		if err != nil || len(chunk.Lines) > 0 {
			return chunk, err
		}
		offset = chunk.Offset
		if time.Now().After(deadline) {
			return chunk, nil
		}
	}
}
