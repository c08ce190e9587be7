// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package executor

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/chzyer/readline"

	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/spnlerr"
)

func (e *Executor) printLine(text string) {
	fmt.Println(text)
}

// askInstance is a process-wide readline session, lazily created, so
// consecutive Ask nodes within one invocation share history instead of
// each reopening the history file.
var (
	askOnce sync.Once
	askInst *readline.Instance
	askErr  error
)

// ask reads one line from stdin with history support, using a's text
// as the prompt. An interrupt (Ctrl-C) or EOF (Ctrl-D) cancels the
// executor rather than exiting the process, so callers embedding the
// executor keep control of their own lifecycle.
func (e *Executor) ask(a *ir.Ask, opts ExecuteOptions) (ir.Query, error) {
	askOnce.Do(func() {
		askInst, askErr = readline.NewEx(&readline.Config{
			Prompt:      a.Text,
			HistoryFile: opts.AskHistoryFile,
		})
	})
	if askErr != nil {
		return nil, spnlerr.NewBackendUnavailable("readline", "failed to initialize interactive prompt", askErr)
	}

	askInst.SetPrompt(a.Text)
	line, err := askInst.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt), errors.Is(err, io.EOF):
		return nil, spnlerr.NewCancelled("interactive input interrupted", err)
	case err != nil:
		return nil, spnlerr.NewBackendUnavailable("readline", "failed to read a line", err)
	}
	return ir.User(line), nil
}
