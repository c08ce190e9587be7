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
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

const roundTo = time.Millisecond

// Report renders the recorder's summaries to w: a box-drawn table when
// tty is true, plain key=value lines (one task per line) otherwise —
// the latter is what a pipe or --silent run gets, so output stays
// greppable.
func (r *Recorder) Report(w io.Writer, tty bool) {
	summaries := r.Summaries()
	if len(summaries) == 0 {
		return
	}

	if tty {
		writeTable(w, summaries)
		return
	}
	writePlain(w, summaries)
}

func writeTable(w io.Writer, summaries []Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Task", "TTFT", "Total", "Tokens", "Mean ITL", "Tok/s", "Error"})
	for _, s := range summaries {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		t.AppendRow(table.Row{
			s.Index,
			s.TTFT.Round(roundTo),
			s.Total.Round(roundTo),
			s.Tokens,
			s.MeanITL.Round(roundTo),
			fmt.Sprintf("%.1f", s.Throughput),
			errText,
		})
	}
	t.Render()
}

func writePlain(w io.Writer, summaries []Summary) {
	for _, s := range summaries {
		fmt.Fprintf(w, "task=%d ttft=%s total=%s tokens=%d mean_itl=%s throughput=%.1f",
			s.Index, s.TTFT.Round(roundTo), s.Total.Round(roundTo), s.Tokens, s.MeanITL.Round(roundTo), s.Throughput)
		if s.Err != nil {
			fmt.Fprintf(w, " err=%q", s.Err.Error())
		}
		fmt.Fprintln(w)
	}
}
