package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

const (
	// GenesisHash is the hash-chain anchor before any event is written.
	GenesisHash = "sha256:genesis"

	// HashPrefix prefixes every computed event hash.
	HashPrefix = "sha256:"
)

// FileWriter appends hash-chained JSON-lines events to a log file.
type FileWriter struct {
	mu       sync.Mutex
	f        *os.File
	lastHash string
}

var _ Writer = (*FileWriter)(nil)

// NewFileWriter opens (or creates) the audit log at path for appending.
// If the log already has events, the chain continues from the last hash.
func NewFileWriter(path string) (*FileWriter, error) {
	lastHash := GenesisHash
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		hash, err := readLastHash(data)
		if err != nil {
			return nil, fmt.Errorf("failed to read last hash from existing log: %w", err)
		}
		lastHash = hash
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &FileWriter{f: f, lastHash: lastHash}, nil
}

// readLastHash returns the hash of the last event in JSONL data.
func readLastHash(data []byte) (string, error) {
	var lastLine string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lastLine = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if lastLine == "" {
		return GenesisHash, nil
	}

	var event struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal([]byte(lastLine), &event); err != nil {
		return "", fmt.Errorf("failed to parse last event: %w", err)
	}
	if event.Hash == "" {
		return "", fmt.Errorf("last event has no hash")
	}
	return event.Hash, nil
}

// Write validates the event, links it into the hash chain, and appends it.
func (w *FileWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid audit event: %w", err)
	}

	event.HashPrev = w.lastHash

	canonical, err := event.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("failed to canonicalize audit event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	event.Hash = HashPrefix + hex.EncodeToString(sum[:])

	line, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	if _, err := w.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	w.lastHash = event.Hash
	return nil
}

// Close closes the underlying file.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// LastHash returns the hash of the last written event.
func (w *FileWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// Default writer plumbing; commands initialize it once per process.

var (
	defaultMu     sync.Mutex
	defaultWriter Writer = NopWriter{}
)

// InitFile routes the package-level log helpers to a file writer.
func InitFile(path string) error {
	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}

	defaultMu.Lock()
	defaultWriter = w
	defaultMu.Unlock()
	return nil
}

// Close closes the default writer and resets it to a NopWriter.
func Close() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	err := defaultWriter.Close()
	defaultWriter = NopWriter{}
	return err
}

func write(event *Event) error {
	defaultMu.Lock()
	w := defaultWriter
	defaultMu.Unlock()
	return w.Write(event)
}

// LogAuthorityCreated records root authority creation.
func LogAuthorityCreated(subject, algorithm string) error {
	return write(NewEvent(EventAuthorityCreated, ResultSuccess).
		WithObject(Object{Type: "authority", Subject: subject}).
		WithContext(Context{Algorithm: algorithm}))
}

// LogCertIssued records a leaf certificate issuance.
func LogCertIssued(serial, subject, extensionUse string) error {
	return write(NewEvent(EventCertIssued, ResultSuccess).
		WithObject(Object{Type: "certificate", Serial: serial, Subject: subject}).
		WithContext(Context{ExtensionUse: extensionUse}))
}

// LogStoreAssembled records a material store build.
func LogStoreAssembled(path, aliases string) error {
	return write(NewEvent(EventStoreAssembled, ResultSuccess).
		WithObject(Object{Type: "store", Path: path}).
		WithContext(Context{Aliases: aliases}))
}

// LogVaultSealed records the secrets vault write.
func LogVaultSealed(path, algorithm string) error {
	return write(NewEvent(EventVaultSealed, ResultSuccess).
		WithObject(Object{Type: "vault", Path: path}).
		WithContext(Context{Algorithm: algorithm}))
}

// LogRunCompleted records a fully completed generation run.
func LogRunCompleted(outDir, profile, edition string) error {
	return write(NewEvent(EventRunCompleted, ResultSuccess).
		WithObject(Object{Type: "run", Path: outDir}).
		WithContext(Context{Profile: profile, Edition: edition}))
}

// LogRunFailed records an aborted run with the failing stage.
func LogRunFailed(outDir, stage, reason string) error {
	return write(NewEvent(EventRunFailed, ResultFailure).
		WithObject(Object{Type: "run", Path: outDir}).
		WithContext(Context{Stage: stage, Reason: reason}))
}
