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

// Package cooperative provides the single-threaded, cooperative
// scheduling discipline alternative to ordinary goroutine-per-connection
// dispatch: continuations posted to a Loop run on one locked OS thread,
// strictly in the order they are posted, while blocking work runs on
// short-lived helper goroutines that hand their result back to the Loop.
//
// Fetch runs a whole client.Request - dial, handshake, header parsing
// and any redirects - as one such blocking call; only its completion
// callback runs on the Loop. The individual reads and writes inside the
// request are not separate suspension points, and this package has no
// server-side counterpart. What it guarantees is that continuations
// posted to one Loop never interleave preemptively with each other.
package cooperative

import (
	"runtime"
	"sync"
)

// Loop runs posted continuations one at a time, in submission order, on
// a single goroutine pinned to one OS thread. The zero value is not
// usable; construct with NewLoop.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	closed chan struct{}
}

// NewLoop starts a Loop's dedicated goroutine and returns immediately.
// Call Stop when the loop is no longer needed.
func NewLoop() *Loop {
	l := &Loop{
		tasks:  make(chan func(), 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.closed)

	for {
		select {
		case task := <-l.tasks:
			task()
		case <-l.done:
			// drain whatever was already queued before stopping, so a
			// continuation posted just before Stop still runs.
			for {
				select {
				case task := <-l.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Post queues fn to run on the loop's thread. It does not block waiting
// for fn to run. Safe to call from any goroutine, including from within
// a continuation already running on the loop.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

// Suspend runs blocking on a short-lived helper goroutine - the one
// place actual I/O happens outside the loop's thread - and posts resume
// back onto the loop once blocking returns. Suspend itself does not
// block the caller.
//
// Fetch is built on it: a whole client.Request becomes one Suspend
// call, so the loop's own thread is never occupied waiting on socket I/O.
func (l *Loop) Suspend(blocking func() (result any, err error), resume func(result any, err error)) {
	go func() {
		result, err := blocking()
		l.Post(func() {
			resume(result, err)
		})
	}()
}

// Stop signals the loop to drain its remaining queued continuations and
// exit, then blocks until it has. Calling Stop more than once is safe.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
	<-l.closed
}
