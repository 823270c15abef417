package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ldi/todo/embed/schema"
	"github.com/ldi/todo/pkg/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const snapshotVersion = 1

type snapshotMeta struct {
	RecordType string `json:"record_type"`
	SnapshotID string `json:"snapshot_id"`
	ExportedAt string `json:"exported_at"`
	Version    int    `json:"version"`
}

type snapshotTodo struct {
	RecordType string `json:"record_type"`
	models.Todo
}

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	db.SetOnChange(func(ctx context.Context) {
		// The write already committed; a failed export must not fail it.
		if err := db.ExportSnapshot(ctx, path); err != nil {
			logger.Warn("auto snapshot failed", "path", path, "err", err)
		}
	})
}

// ExportSnapshot writes every todo as JSONL to the given path atomically
// using a temporary file. The first line is a meta record.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	todos, err := db.ListTodos(ctx)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	enc := json.NewEncoder(tempFile)
	meta := snapshotMeta{
		RecordType: "meta",
		SnapshotID: uuid.NewString(),
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    snapshotVersion,
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}

	for _, t := range todos {
		if err := enc.Encode(snapshotTodo{RecordType: "todo", Todo: t}); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and merges it into the database in a
// single transaction. Every line is validated against the snapshot schema.
// A todo whose title and creation time already exist has its completion flag
// synced; anything else is inserted with a fresh id.
func (db *DB) ImportSnapshot(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	validator, err := compileSnapshotSchema()
	if err != nil {
		return 0, err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	existing := make(map[string]int64)
	current, err := db.listTodos(ctx, tx)
	if err != nil {
		return 0, err
	}
	for _, t := range current {
		existing[snapshotKey(t.Title, t.CreatedAt)] = t.ID
	}

	imported := 0
	lineNo := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var doc any
		if err := json.Unmarshal(line, &doc); err != nil {
			return 0, fmt.Errorf("%w: line %d: %v", ErrValidation, lineNo, err)
		}
		if err := validator.Validate(doc); err != nil {
			return 0, fmt.Errorf("%w: line %d: %s", ErrValidation, lineNo, schemaErrorMessage(err))
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return 0, fmt.Errorf("failed to unmarshal base record: %w", err)
		}
		if base.RecordType != "todo" {
			continue
		}

		var rec snapshotTodo
		if err := json.Unmarshal(line, &rec); err != nil {
			return 0, fmt.Errorf("failed to unmarshal todo on line %d: %w", lineNo, err)
		}
		title := strings.TrimSpace(rec.Title)
		key := snapshotKey(title, rec.CreatedAt)

		if id, ok := existing[key]; ok {
			if _, err := tx.ExecContext(ctx, `UPDATE todos SET done = ? WHERE id = ?`, boolToInt(rec.Done), id); err != nil {
				return 0, storageErr("sync todo", err)
			}
		} else {
			t, err := db.insertTodo(ctx, tx, title, rec.Done, rec.CreatedAt)
			if err != nil {
				return 0, err
			}
			existing[key] = t.ID
		}
		imported++
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit snapshot import", err)
	}

	db.commit(ctx)
	return imported, nil
}

func snapshotKey(title string, createdAt int64) string {
	return fmt.Sprintf("%d\x00%s", createdAt, title)
}

func compileSnapshotSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	if err := compiler.AddResource(schema.SnapshotURL, strings.NewReader(schema.Snapshot)); err != nil {
		return nil, fmt.Errorf("add snapshot schema: %w", err)
	}
	s, err := compiler.Compile(schema.SnapshotURL)
	if err != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", err)
	}
	return s, nil
}

// schemaErrorMessage returns the first leaf cause of a validation error.
func schemaErrorMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return ve.InstanceLocation + ": " + ve.Message
}
