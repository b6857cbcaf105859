package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/pkg/types"
)

// Writer formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Writer prints documents instead of delivering them. JSON is written one
// document per line, YAML as a stream of documents.
type Writer struct {
	mu     sync.Mutex
	format string
	out    io.Writer
	yaml   *yaml.Encoder
}

var _ Sink = (*Writer)(nil)

// NewWriter creates a writer sink
func NewWriter(out io.Writer, format string) (*Writer, error) {
	w := &Writer{format: format, out: out}
	switch format {
	case FormatJSON, "":
		w.format = FormatJSON
	case FormatYAML:
		w.yaml = yaml.NewEncoder(out)
		w.yaml.SetIndent(2)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return w, nil
}

// Publish writes doc
func (w *Writer) Publish(_ context.Context, doc types.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.format == FormatYAML {
		err = w.yaml.Encode(doc)
	} else {
		var data []byte
		data, err = json.Marshal(doc)
		if err == nil {
			_, err = fmt.Fprintln(w.out, string(data))
		}
	}
	if err != nil {
		return driverrors.PublishError(driverrors.ComponentLoader, doc.Collection, err)
	}
	return nil
}

// Close flushes the YAML stream
func (w *Writer) Close() error {
	if w.yaml != nil {
		return w.yaml.Close()
	}
	return nil
}
