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
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorderTracksTTFTAndTokenCount(t *testing.T) {
	r := NewRecorder()
	r.Start(0)
	r.Token(0, "hel")
	r.Token(0, "lo")
	r.Done(0, nil)

	summaries := r.Summaries()
	require.Len(t, summaries, 1)
	s := summaries[0]
	require.Equal(t, 0, s.Index)
	require.Equal(t, 2, s.Tokens)
	require.Nil(t, s.Err)
	require.GreaterOrEqual(t, s.TTFT, time.Duration(0))
}

func TestRecorderRecordsPerTaskErrors(t *testing.T) {
	r := NewRecorder()
	r.Start(0)
	r.Start(1)
	r.Token(0, "ok")
	r.Done(0, nil)
	r.Done(1, errors.New("boom"))

	summaries := r.Summaries()
	require.Len(t, summaries, 2)
	require.Nil(t, summaries[0].Err)
	require.Error(t, summaries[1].Err)
}

func TestReportPlainIsGreppable(t *testing.T) {
	r := NewRecorder()
	r.Start(0)
	r.Token(0, "x")
	r.Done(0, nil)

	var buf bytes.Buffer
	r.Report(&buf, false)
	out := buf.String()
	require.True(t, strings.Contains(out, "task=0"))
	require.True(t, strings.Contains(out, "tokens=1"))
}

func TestReportTableRendersHeader(t *testing.T) {
	r := NewRecorder()
	r.Start(0)
	r.Token(0, "x")
	r.Done(0, nil)

	var buf bytes.Buffer
	r.Report(&buf, true)
	require.True(t, strings.Contains(buf.String(), "TTFT"))
}

func TestReportEmptyRecorderWritesNothing(t *testing.T) {
	r := NewRecorder()
	var buf bytes.Buffer
	r.Report(&buf, true)
	require.Equal(t, "", buf.String())
}
