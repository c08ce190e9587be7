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

package timing

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// BarSet renders one progress bar per task index, for callers that
// want a live view of a Repeat/Map/Bulk fan-out (index progress) in
// addition to, or instead of, a post-hoc Report. Bars are created
// lazily on first Start so a BarSet can be wired as an executor
// TimingHook directly.
type BarSet struct {
	mu   sync.Mutex
	bars map[int]*progressbar.ProgressBar
	total int
}

// NewBarSet creates a BarSet. total is each bar's length in tokens;
// 0 renders a spinner instead of a determinate bar.
func NewBarSet(total int) *BarSet {
	return &BarSet{bars: make(map[int]*progressbar.ProgressBar), total: total}
}

func (s *BarSet) barLocked(idx int) *progressbar.ProgressBar {
	b, ok := s.bars[idx]
	if !ok {
		b = progressbar.NewOptions(s.total,
			progressbar.OptionSetDescription(fmt.Sprintf("task %d", idx)),
			progressbar.OptionShowCount(),
		)
		s.bars[idx] = b
	}
	return b
}

// Start creates idx's bar if needed.
func (s *BarSet) Start(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barLocked(idx)
}

// Token advances idx's bar by one token.
func (s *BarSet) Token(idx int, delta string) {
	if delta == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.barLocked(idx).Add(1)
}

// Done finishes idx's bar, marking it failed in its description if err
// is non-nil.
func (s *BarSet) Done(idx int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.barLocked(idx)
	if err != nil {
		b.Describe(fmt.Sprintf("task %d (failed)", idx))
	}
	_ = b.Finish()
}
