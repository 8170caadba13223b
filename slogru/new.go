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

package slogru

import (
	"log/slog"
	"os"
)

// Level sets the default logger's minimum level and whether source
// locations are attached. It is read once, when the package builds its
// default logger during initialization; assigning it later does not
// change [Default].
var Level = slog.LevelInfo

func new(fields ...slog.Attr) *Logger {
	opts := slog.HandlerOptions{Level: Level}
	if Level == slog.LevelDebug {
		opts.AddSource = true
	}

	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &opts).WithAttrs(fields)),
	}
}
