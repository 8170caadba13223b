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

package cooperative

import (
	"context"

	"github.com/dimkr/gemlib/client"
)

// FetchResult is what a cooperative fetch hands back to its completion
// callback: either a Response or an error, never both.
type FetchResult struct {
	Response *client.Response
	Err      error
}

// Fetch performs c.Request(ctx, rawURL) as a single suspension point on
// loop: the blocking dial/handshake/header-read runs on a helper
// goroutine, and done is invoked back on loop's own thread once it
// completes, alongside whatever other continuations are queued there
// (e.g. a TUI's redraw-on-input handler) - never concurrently with them.
func Fetch(loop *Loop, c *client.Client, ctx context.Context, rawURL string, done func(FetchResult)) {
	loop.Suspend(
		func() (any, error) {
			resp, err := c.Request(ctx, rawURL)
			return resp, err
		},
		func(result any, err error) {
			resp, _ := result.(*client.Response)
			done(FetchResult{Response: resp, Err: err})
		},
	)
}
