/*
Copyright 2026 The gemlib Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"
	"time"
)

// cast records a pty's output as an asciicast v2 stream: a JSON header
// line followed by one "[timestamp, \"o\", data]" frame per read, timed
// relative to the first frame.
type cast struct {
	start time.Time
	mu    sync.Mutex
	w     io.Writer
	pty   io.ReadWriter
	done  <-chan error
}

func startCast(pty io.ReadWriter, w io.Writer, cols, rows int) (*cast, error) {
	term := os.Getenv("TERM")
	if term == "" {
		term = "xterm-256color"
	}

	header := map[string]any{
		"version": 2,
		"width":   cols,
		"height":  rows,
		"env":     map[string]string{"SHELL": "/bin/sh", "TERM": term},
	}
	encoded, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(w, "%s\n", encoded); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	c := &cast{pty: pty, w: w}
	c.done = done
	go func() { done <- c.watch() }()

	return c, nil
}

func (c *cast) Wait() error {
	return <-c.done
}

func (c *cast) frame(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.start.IsZero() {
		c.start = time.Now()
	}
	delta := time.Since(c.start)

	encoded, err := json.Marshal(string(buf))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.w, "[%.6f, \"o\", %s]\n", delta.Seconds(), encoded)
	return err
}

func (c *cast) watch() error {
	buf := make([]byte, 64*1024)
	for {
		n, err := c.pty.Read(buf)
		if n > 0 {
			if werr := c.frame(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return nil
		}
	}
}

// Input sends raw bytes to the pty, as if typed.
func (c *cast) Input(s string) error {
	_, err := c.pty.Write([]byte(s))
	return err
}

// Type sends s one rune at a time with a human-ish random delay between
// keystrokes, so the recording doesn't read as a paste.
func (c *cast) Type(ctx context.Context, s string) error {
	for i, r := range s {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond * time.Duration(30+rand.IntN(120))):
			}
		}
		if err := c.Input(string(r)); err != nil {
			return err
		}
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
