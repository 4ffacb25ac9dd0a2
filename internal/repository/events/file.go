package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Repository defines persistence operations for the Event Store.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// FileRepository persists the store to a JSON file on disk.
// The document is a protobuf Struct encoded with protojson: timestamps are
// RFC 3339 strings in UTC, flags are booleans.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

// filePermissions restricts the store file to its owner.
const filePermissions = 0o600

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read event store file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode event store file: %w", err)
	}

	return fromStruct(&document)
}

// Save atomically replaces the file with the snapshot.
func (r *FileRepository) Save(_ context.Context, snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(toStruct(snapshot))
	if err != nil {
		return fmt.Errorf("encode event store: %w", err)
	}

	if err = renameio.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write event store file: %w", err)
	}

	return nil
}

// fromStruct converts the persisted document into a Snapshot.
// Unknown keys are skipped so older binaries can read newer files.
func fromStruct(document *structpb.Struct) (*Snapshot, error) {
	snapshot := NewSnapshot()

	for name, value := range document.GetFields() {
		key := Key(name)

		switch {
		case IsTimeKey(key):
			if _, isNull := value.GetKind().(*structpb.Value_NullValue); isNull {
				continue
			}

			at, err := time.Parse(time.RFC3339Nano, value.GetStringValue())
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}

			snapshot.Times[key] = at.UTC()
		case IsFlagKey(key):
			snapshot.Flags[key] = value.GetBoolValue()
		}
	}

	return snapshot, nil
}

// toStruct converts a Snapshot into the persisted document.
func toStruct(snapshot *Snapshot) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(snapshot.Times)+len(snapshot.Flags))

	for key, at := range snapshot.Times {
		if at.IsZero() {
			continue
		}

		fields[string(key)] = structpb.NewStringValue(at.UTC().Format(time.RFC3339Nano))
	}

	for key, flag := range snapshot.Flags {
		fields[string(key)] = structpb.NewBoolValue(flag)
	}

	return &structpb.Struct{Fields: fields}
}
