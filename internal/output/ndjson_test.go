package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(buf)
	var m map[string]interface{}
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestWriteError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteError("NO_TARGETS", "no targets", "start a Flutter app"))

	m := decodeLine(t, buf)
	require.Equal(t, "error", m["type"])
	require.EqualValues(t, 1, m["schemaVersion"])
	require.Equal(t, "NO_TARGETS", m["code"])
	require.Equal(t, "no targets", m["message"])
	require.Equal(t, "start a Flutter app", m["hint"])
}

func TestWriteErrorWithoutHint(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteError("X", "boom"))

	m := decodeLine(t, buf)
	require.NotContains(t, m, "hint")
}

func TestWriteInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteInfo("Explo: No appropriate debug sessions available"))

	m := decodeLine(t, buf)
	require.Equal(t, "info", m["type"])
	require.Equal(t, "Explo: No appropriate debug sessions available", m["message"])
	require.NotEmpty(t, m["timestamp"])
}

func TestWriteWaiting(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteWaiting("s1", "app", "session_ready", 3*time.Second))

	m := decodeLine(t, buf)
	require.Equal(t, "waiting", m["type"])
	require.Equal(t, "s1", m["session"])
	require.Equal(t, "app", m["label"])
	require.Equal(t, "session_ready", m["reason"])
	require.EqualValues(t, 3, m["elapsed_seconds"])
}

func TestWriteDoesNotEscapeHTML(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.Write(map[string]string{"uri": "ws://h/<a>&b"}))
	require.Contains(t, buf.String(), "<a>&b")
}

func TestConcurrentWritesKeepLinesIntact(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteInfo("message")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
	}
}
