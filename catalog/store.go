package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/leeforge/catalogkit/json"
	"github.com/leeforge/catalogkit/utils"
	"gopkg.in/yaml.v3"
)

// Store reads and writes the whole catalog at once. Record order is kept.
type Store interface {
	ReadAll(ctx context.Context) ([]Product, error)
	WriteAll(ctx context.Context, records []Product) error
}

type encoding int

const (
	encodingJSON encoding = iota
	encodingYAML
)

// FileStore keeps the catalog in a single JSON or YAML file, chosen by
// extension.
type FileStore struct {
	path string
	enc  encoding
}

func NewFileStore(path string) (*FileStore, error) {
	enc, err := encodingFor(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, enc: enc}, nil
}

func encodingFor(path string) (encoding, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return encodingJSON, nil
	case ".yaml", ".yml":
		return encodingYAML, nil
	}
	return 0, apperrors.NewValidation(fmt.Sprintf("unsupported catalog file %q: want .json, .yaml or .yml", path))
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) ReadAll(ctx context.Context) ([]Product, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFound("catalog", s.path)
	}
	if err != nil {
		return nil, apperrors.NewIO("read", s.path, err)
	}

	var records []Product
	if err := decode(s.enc, data, &records); err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeValidation, "parse "+s.path)
	}
	return records, nil
}

// WriteAll validates records and replaces the file atomically.
func (s *FileStore) WriteAll(ctx context.Context, records []Product) error {
	if err := Validate(records); err != nil {
		return err
	}
	if records == nil {
		records = []Product{}
	}

	data, err := encode(s.enc, records)
	if err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeInternal, "encode catalog")
	}

	if err := utils.WriteFileAtomic(s.path, data, 0644); err != nil {
		return apperrors.NewIO("write", s.path, err)
	}
	return nil
}

func decode(enc encoding, data []byte, v any) error {
	if enc == encodingYAML {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func encode(enc encoding, v any) ([]byte, error) {
	if enc == encodingYAML {
		var buf bytes.Buffer
		e := yaml.NewEncoder(&buf)
		e.SetIndent(2)
		if err := e.Encode(v); err != nil {
			return nil, err
		}
		if err := e.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ReadFile decodes any JSON or YAML document into v, chosen by extension.
func ReadFile(path string, v any) error {
	enc, err := encodingFor(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return apperrors.NewNotFound("file", path)
	}
	if err != nil {
		return apperrors.NewIO("read", path, err)
	}
	if err := decode(enc, data, v); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeValidation, "parse "+path)
	}
	return nil
}

// WriteFile encodes v as JSON or YAML, chosen by extension.
func WriteFile(path string, v any) error {
	enc, err := encodingFor(path)
	if err != nil {
		return err
	}
	data, err := encode(enc, v)
	if err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeInternal, "encode "+path)
	}
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return apperrors.NewIO("write", path, err)
	}
	return nil
}
