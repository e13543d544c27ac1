package tailcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// follower reads a growing file. At EOF it blocks until fsnotify reports a
// write, and it reports io.EOF once stop is done and nothing is left to read.
type follower struct {
	path    string
	file    *os.File
	watcher *fsnotify.Watcher
	stop    context.Context
}

func newFollower(stop context.Context, path string) (*follower, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating capture watcher: %w", err)
	}

	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		file.Close()
		return nil, fmt.Errorf("watching capture dir: %w", err)
	}

	return &follower{
		path:    filepath.Clean(path),
		file:    file,
		watcher: watcher,
		stop:    stop,
	}, nil
}

func (f *follower) Read(p []byte) (int, error) {
	for {
		n, err := f.file.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		if f.stop.Err() != nil {
			return 0, io.EOF
		}

		if err := f.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the file may have grown or stop is done.
func (f *follower) wait() error {
	for {
		select {
		case <-f.stop.Done():
			return nil
		case event, ok := <-f.watcher.Events:
			if !ok {
				return io.EOF
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			return nil
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("capture watcher error: %w", err)
		}
	}
}

func (f *follower) Close() error {
	return errors.Join(f.watcher.Close(), f.file.Close())
}
