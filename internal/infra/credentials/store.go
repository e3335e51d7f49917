package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"promptsmith/internal/infra"
	"promptsmith/internal/sqlinline"
	"promptsmith/internal/storage"
)

// StorageKey is the fixed name the Gemini API key is stored under.
const StorageKey = "gemini-api-key"

// ErrNotFound is returned by a Backend when the key holds no value.
var ErrNotFound = errors.New("credentials: not found")

// Backend is a durable key-value store for a single string per key.
type Backend interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, value string) error
}

// Store reads and writes the API key. Every read goes to the backend; a
// backend that cannot be read behaves as if no key were stored.
type Store struct {
	backend Backend
	logger  zerolog.Logger
}

func NewStore(backend Backend, logger zerolog.Logger) *Store {
	return &Store{backend: backend, logger: logger.With().Str("component", "credentials").Logger()}
}

// Get returns the stored key exactly as it was set and whether one is
// present. A whitespace-only value reads as absent.
func (s *Store) Get(ctx context.Context) (string, bool) {
	if s == nil || s.backend == nil {
		return "", false
	}
	value, err := s.backend.Load(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("credential storage unavailable; treating key as absent")
		}
		return "", false
	}
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// Set persists value as-is. An empty value clears the stored key.
func (s *Store) Set(ctx context.Context, value string) error {
	if s == nil || s.backend == nil {
		return errors.New("credentials: no backend configured")
	}
	if err := s.backend.Save(ctx, StorageKey, value); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist credential")
		return err
	}
	s.logger.Info().Bool("present", strings.TrimSpace(value) != "").Msg("credential updated")
	return nil
}

// Masked returns a redacted rendering of the stored key, or "" if absent.
func (s *Store) Masked(ctx context.Context) string {
	value, ok := s.Get(ctx)
	if !ok {
		return ""
	}
	return Mask(value)
}

// Mask keeps the first and last four runes of long secrets and hides the rest.
func Mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 8 {
		return strings.Repeat("•", len(runes))
	}
	return string(runes[:4]) + strings.Repeat("•", len(runes)-8) + string(runes[len(runes)-4:])
}

// FileBackend stores each key as a file under a FileStore root.
type FileBackend struct {
	files *storage.FileStore
}

func NewFileBackend(files *storage.FileStore) *FileBackend {
	return &FileBackend{files: files}
}

func (b *FileBackend) Load(ctx context.Context, key string) (string, error) {
	data, err := b.files.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

func (b *FileBackend) Save(ctx context.Context, key, value string) error {
	if value == "" {
		return b.files.Delete(ctx, key)
	}
	_, err := b.files.Write(ctx, key, []byte(value))
	return err
}

// SQLBackend stores keys in the settings table.
type SQLBackend struct {
	sql infra.SQLExecutor
}

func NewSQLBackend(sql infra.SQLExecutor) *SQLBackend {
	return &SQLBackend{sql: sql}
}

// EnsureSchema creates the settings table when missing.
func (b *SQLBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.sql.Exec(ctx, sqlinline.QCreateSettingsTable)
	return err
}

func (b *SQLBackend) Load(ctx context.Context, key string) (string, error) {
	row := b.sql.QueryRow(ctx, sqlinline.QSelectSetting, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if infra.IsNoRows(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (b *SQLBackend) Save(ctx context.Context, key, value string) error {
	if value == "" {
		_, err := b.sql.Exec(ctx, sqlinline.QDeleteSetting, key)
		return err
	}
	_, err := b.sql.Exec(ctx, sqlinline.QUpsertSetting, key, value)
	return err
}

// MemoryBackend keeps values in process memory.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (b *MemoryBackend) Load(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (b *MemoryBackend) Save(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if value == "" {
		delete(b.values, key)
		return nil
	}
	b.values[key] = value
	return nil
}

var (
	_ Backend = (*FileBackend)(nil)
	_ Backend = (*SQLBackend)(nil)
	_ Backend = (*MemoryBackend)(nil)
)
