package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/suderio/skirmish/internal/engine"
)

// envelope tags a serialized event with its type so it can be decoded again.
type envelope struct {
	Type  engine.EventType `json:"type"`
	Event json.RawMessage  `json:"data"`
}

// Journal is an append-only JSONL log of bus events. Subscribe its Append
// to a combat's bus to record everything the combat emits.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	err  error
}

// OpenJournal opens or creates the file at path for appending lines.
func OpenJournal(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	return &Journal{file: file}, nil
}

// Append writes evt as one line. The first write error sticks and is
// reported by Err and Close.
func (j *Journal) Append(evt engine.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.err = j.write(evt)
	return j.err
}

// Record is Append shaped as a bus handler.
func (j *Journal) Record(evt engine.Event) { _ = j.Append(evt) }

func (j *Journal) write(evt engine.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	line, err := json.Marshal(envelope{Type: evt.Type(), Event: data})
	if err != nil {
		return err
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// Err returns the first write failure, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Load replays the whole journal from the start.
func (j *Journal) Load() ([]engine.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return ReadEvents(j.file)
}

// ReadEvents decodes a JSONL event stream.
func ReadEvents(r io.Reader) ([]engine.Event, error) {
	var events []engine.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode envelope: %w", line, err)
		}
		evt, err := engine.NewEvent(env.Type)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := json.Unmarshal(env.Event, evt); err != nil {
			return nil, fmt.Errorf("line %d: failed to parse %s: %w", line, env.Type, err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Close flushes to disk and closes the file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.file.Sync(); err != nil {
		j.file.Close()
		return err
	}
	if err := j.file.Close(); err != nil {
		return err
	}
	return j.err
}
