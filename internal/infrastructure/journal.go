// services/farm/internal/infrastructure/journal.go
package infrastructure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalEntry is one dead-lettered MQTT message: a payload that arrived but
// could not be ingested.
type JournalEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Error     string    `json:"error"`
	Retries   int       `json:"retries"`
}

// Journal is an append-only on-disk dead-letter log, one JSON entry per
// line. The replay command drains it back through the ingestion pipeline.
type Journal struct {
	path       string
	file       *os.File
	mu         sync.Mutex
	maxRetries int
}

// NewJournal opens or creates the journal file at path.
func NewJournal(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	return &Journal{
		path:       path,
		file:       file,
		maxRetries: 5,
	}, nil
}

// Append records a failed message.
func (j *Journal) Append(topic string, payload []byte, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := JournalEntry{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid()),
		Timestamp: time.Now(),
		Topic:     topic,
		Payload:   payload,
		Error:     reason,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return j.file.Sync()
}

// ReadAll returns every entry still eligible for replay. Corrupted lines are
// skipped.
func (j *Journal) ReadAll() ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek journal: %w", err)
	}

	var entries []JournalEntry
	scanner := bufio.NewScanner(j.file)
	for scanner.Scan() {
		var entry JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Retries < j.maxRetries {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("failed to seek to end of journal: %w", err)
	}
	return entries, nil
}

// Rewrite replaces the journal contents with the given entries, typically
// the ones that failed again during replay with their retry counts bumped.
func (j *Journal) Rewrite(entries []JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tempPath := j.path + ".tmp"
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp journal: %w", err)
	}

	writer := bufio.NewWriter(tempFile)
	for _, entry := range entries {
		if entry.Retries >= j.maxRetries {
			continue
		}
		line, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			tempFile.Close()
			return fmt.Errorf("failed to write temp journal: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to flush temp journal: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temp journal: %w", err)
	}
	tempFile.Close()

	j.file.Close()
	if err := os.Rename(tempPath, j.path); err != nil {
		return fmt.Errorf("failed to replace journal file: %w", err)
	}

	j.file, err = os.OpenFile(j.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to reopen journal file: %w", err)
	}
	return nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		if err := j.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync journal before closing: %w", err)
		}
		return j.file.Close()
	}
	return nil
}
