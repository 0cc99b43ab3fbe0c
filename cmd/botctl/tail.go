package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/npratt/botctl/internal/events"
	"github.com/npratt/botctl/internal/tui"
)

// tailLast prints the last n lines of the event log.
func tailLast(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = fmt.Fprintln(w, "No events yet (log file does not exist)")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}

	if len(lines) == 0 {
		_, _ = fmt.Fprintln(w, "No events yet")
		return nil
	}

	start := 0
	if n > 0 && len(lines) > n {
		start = len(lines) - n
	}
	for _, line := range lines[start:] {
		printEventLine(w, line)
	}
	return nil
}

// follower reads lines appended to one log file, holding back a trailing
// partial line until its newline arrives.
type follower struct {
	path    string
	out     io.Writer
	file    *os.File
	reader  *bufio.Reader
	partial string
}

func (f *follower) open(atEnd bool) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	if atEnd {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			_ = file.Close()
			return fmt.Errorf("seek to end: %w", err)
		}
	}
	f.file = file
	f.reader = bufio.NewReader(file)
	f.partial = ""
	return nil
}

func (f *follower) drain() error {
	if f.reader == nil {
		return nil
	}
	for {
		chunk, err := f.reader.ReadString('\n')
		f.partial += chunk
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read log: %w", err)
		}
		printEventLine(f.out, strings.TrimSuffix(f.partial, "\n"))
		f.partial = ""
	}
}

func (f *follower) close() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
		f.reader = nil
	}
}

// tailFollow prints lines appended to the event log until ctx is done. The
// log is replaced when a session starts; the new file is read from the top.
func tailFollow(ctx context.Context, w io.Writer, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the parent directory since the file may not exist yet
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create event log directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	f := &follower{path: path, out: w}
	defer f.close()

	if err := f.open(true); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("open log file: %w", err)
		}
		_, _ = fmt.Fprintln(w, "Waiting for log file to be created...")
	}
	_, _ = fmt.Fprintln(w, "Following events (Ctrl+C to stop)...")

	target := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}

			switch {
			case event.Has(fsnotify.Create):
				f.close()
				if err := f.open(false); err != nil {
					if errors.Is(err, os.ErrNotExist) {
						continue
					}
					return fmt.Errorf("open log file: %w", err)
				}
			case event.Has(fsnotify.Write):
				if f.file == nil {
					if err := f.open(false); err != nil {
						continue
					}
				}
			default:
				continue
			}
			if err := f.drain(); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher: %w", err)
		}
	}
}

// printEventLine prints a single event log line in a human-readable format.
func printEventLine(w io.Writer, line string) {
	ev, err := events.ParseEvent([]byte(line))
	if err != nil || ev == nil {
		// Not an event we know, print as-is
		_, _ = fmt.Fprintln(w, line)
		return
	}

	timestamp := ev.Timestamp().Local().Format("15:04:05")
	if detail := tui.Format(ev); detail != "" {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, ev.Channel(), detail)
		return
	}
	_, _ = fmt.Fprintf(w, "[%s] %s\n", timestamp, ev.Channel())
}
