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

// Command demo records a scripted terminal session of gmbrowse to an
// asciicast v2 file, the way the teacher's cmd/demo records cmd/local -
// by driving a real pty rather than faking terminal output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"
)

const (
	cols = 80
	rows = 24
)

var (
	record   = flag.String("record", "demo.cast", "output asciicast file")
	gmbrowse = flag.String("gmbrowse", "gmbrowse", "path to the gmbrowse binary")
	url      = flag.String("url", "gemini://localhost/", "URL gmbrowse opens on start")
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	f, err := os.Create(*record)
	must(err)
	defer f.Close()

	c := exec.CommandContext(ctx, *gmbrowse, *url)

	p, err := pty.StartWithSize(c, &pty.Winsize{Rows: rows, Cols: cols})
	must(err)
	defer p.Close()

	if _, err := term.MakeRaw(int(p.Fd())); err != nil {
		must(err)
	}

	rec, err := startCast(p, f, cols, rows)
	must(err)

	fmt.Fprintf(os.Stderr, "demo: recording %s to %s\n", *url, *record)

	must(pause(ctx, 2*time.Second))

	// browse a few links, then open the address bar and navigate
	// directly, then quit.
	must(rec.Input("1"))
	must(pause(ctx, time.Second))
	must(rec.Input("2"))
	must(pause(ctx, 2*time.Second))
	must(rec.Input("b"))
	must(pause(ctx, time.Second))

	must(rec.Input("/"))
	must(pause(ctx, 500*time.Millisecond))
	must(rec.Type(ctx, *url))
	must(pause(ctx, 500*time.Millisecond))
	must(rec.Input("\r"))
	must(pause(ctx, 2*time.Second))

	must(rec.Input("q"))

	if err := c.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "demo: gmbrowse exited: %v\n", err)
	}
	must(rec.Wait())

	fmt.Fprintf(os.Stderr, "demo: done\n")
}
