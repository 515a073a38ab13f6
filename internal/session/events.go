package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
)

// Event is one line of the session event log. Unknown fields are ignored;
// the engine only ever needs the type, the timestamp, and the message text.
type Event struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text,omitempty"`
}

// maxEventLineSize bounds a single event-log line. Tool output embedded in
// events can get large.
const maxEventLineSize = 2 * 1024 * 1024

// tailReadBytes is how much of the event log's tail the classifier reads.
// Reading the whole file on every poll would scale with transcript size.
const tailReadBytes = 4096

// eventLogSummary is what a full scan of the event log yields.
type eventLogSummary struct {
	userMessages int
	firstMessage string
}

// scanEventLog reads the whole event log, counting user messages and
// remembering the first one. Malformed lines are skipped, a missing file
// reports ok=false. A line over maxEventLineSize is dropped on its own;
// events after it still count.
func scanEventLog(path string) (eventLogSummary, bool) {
	f, err := os.Open(path)
	if err != nil {
		return eventLogSummary{}, false
	}
	defer f.Close()

	var summary eventLogSummary

	r := bufio.NewReaderSize(f, 64*1024)
	var line []byte
	oversized := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			break
		}
		if oversized {
			// Still inside the line that blew the cap; discard to its end.
			if !isPrefix {
				oversized = false
			}
			continue
		}
		line = append(line, chunk...)
		if isPrefix {
			if len(line) > maxEventLineSize {
				oversized = true
				line = line[:0]
			}
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err == nil && ev.Type == EventUserMessage {
			summary.userMessages++
			if summary.firstMessage == "" {
				summary.firstMessage = ev.Text
			}
		}
		line = line[:0]
	}
	return summary, true
}

// tailEventType returns the type of the last parseable event in the log,
// reading only the trailing tailReadBytes of the file. ok is false when the
// file is missing, empty, or its tail holds no parseable event.
func tailEventType(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return "", false
	}

	offset := info.Size() - tailReadBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", false
	}

	tail, err := io.ReadAll(io.LimitReader(f, tailReadBytes))
	if err != nil {
		return "", false
	}

	// Walk the tail backwards; the first line fragment may be a partial
	// record when the seek landed mid-line, so scanning from the end finds
	// the newest complete event first.
	lines := bytes.Split(tail, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if ev.Type == "" {
			continue
		}
		return ev.Type, true
	}
	return "", false
}
