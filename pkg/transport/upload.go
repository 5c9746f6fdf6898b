package transport

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formrunner/pkg/component"
	"github.com/goliatone/go-formrunner/pkg/definition"
)

// UploadStatus tracks a file through its lifecycle. Files upload out of
// band; the runner only records what the upload store reports.
type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadReady    UploadStatus = "ready"
	UploadRejected UploadStatus = "rejected"
	UploadComplete UploadStatus = "complete"
)

// terminal reports whether the file needs no further processing.
func (s UploadStatus) terminal() bool {
	switch s {
	case UploadReady, UploadRejected, UploadComplete:
		return true
	}
	return false
}

// FileUpload is one uploaded file's record in session state.
type FileUpload struct {
	FileID   string       `json:"fileId"`
	Filename string       `json:"filename"`
	Status   UploadStatus `json:"status"`
	Location string       `json:"location,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}

// UploadService normalises file-upload submissions into tracked records and
// gates page progression on their status.
type UploadService struct {
	logger *zap.Logger
}

// UploadOption configures an UploadService.
type UploadOption func(*UploadService)

// WithUploadLogger attaches a logger.
func WithUploadLogger(logger *zap.Logger) UploadOption {
	return func(u *UploadService) {
		u.logger = logger
	}
}

// NewUploadService returns a service.
func NewUploadService(opts ...UploadOption) *UploadService {
	u := &UploadService{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Normalise rewrites each file-upload answer in the payload into FileUpload
// records: fresh filenames become pending records with generated ids,
// already-tracked records pass through with their reported status.
func (u *UploadService) Normalise(payload map[string]any, col *component.Collection) (map[string]any, error) {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	for _, c := range col.FormComponents() {
		if c.Type != definition.TypeFileUpload {
			continue
		}
		raw, ok := payload[c.Name]
		if !ok || raw == nil || raw == "" {
			continue
		}

		files, err := u.parseFiles(raw)
		if err != nil {
			return nil, fmt.Errorf("transport: field %q: %w", c.Name, err)
		}
		if !c.Options.MultipleFilesAllowed && len(files) > 1 {
			return nil, fmt.Errorf("transport: field %q accepts a single file", c.Name)
		}

		encoded := make([]any, 0, len(files))
		for _, f := range files {
			blob, err := json.Marshal(f)
			if err != nil {
				return nil, fmt.Errorf("transport: encode file record: %w", err)
			}
			encoded = append(encoded, string(blob))
		}
		if c.Options.MultipleFilesAllowed {
			out[c.Name] = encoded
		} else {
			out[c.Name] = encoded[0]
		}
	}
	return out, nil
}

// parseFiles accepts either tracked-record JSON or bare filenames, in a
// single value or a list.
func (u *UploadService) parseFiles(raw any) ([]FileUpload, error) {
	var entries []any
	switch v := raw.(type) {
	case []any:
		entries = v
	case []string:
		for _, s := range v {
			entries = append(entries, s)
		}
	default:
		entries = []any{raw}
	}

	out := make([]FileUpload, 0, len(entries))
	for _, entry := range entries {
		s, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected file value %T", entry)
		}

		var record FileUpload
		if err := json.Unmarshal([]byte(s), &record); err == nil && record.FileID != "" {
			out = append(out, record)
			continue
		}

		record = FileUpload{
			FileID:   uuid.NewString(),
			Filename: s,
			Status:   UploadPending,
		}
		u.logger.Info("file registered",
			zap.String("fileId", record.FileID),
			zap.String("filename", record.Filename))
		out = append(out, record)
	}
	return out, nil
}

// Settled reports whether every required file-upload answer on the page has
// reached a terminal status; progression past an upload page blocks until
// then.
func (u *UploadService) Settled(scoped map[string]any, col *component.Collection) bool {
	for _, c := range col.FormComponents() {
		if c.Type != definition.TypeFileUpload {
			continue
		}
		value, ok := scoped[c.Name]
		if !ok || value == nil {
			if c.Options.IsRequired() {
				return false
			}
			continue
		}
		for _, record := range decodeFiles(value) {
			if !record.Status.terminal() {
				return false
			}
		}
	}
	return true
}

func decodeFiles(value any) []FileUpload {
	var entries []any
	switch v := value.(type) {
	case []any:
		entries = v
	case string:
		entries = []any{v}
	default:
		return nil
	}

	out := make([]FileUpload, 0, len(entries))
	for _, entry := range entries {
		s, ok := entry.(string)
		if !ok {
			continue
		}
		var record FileUpload
		if err := json.Unmarshal([]byte(s), &record); err == nil && record.FileID != "" {
			out = append(out, record)
		}
	}
	return out
}
