// Package render is the presentation adapter: each renderer accepts a
// finalized table plus a small configuration and writes one terminal artifact
// (PNG chart, interactive HTML, or CSV). Renderers never reach back into
// retrieval or transformation; malformed input fails with a
// domain.RenderError.
package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/jszwec/csvutil"
)

// Artifact kinds, used for metrics labels and manifests.
const (
	KindPNG  = "png"
	KindHTML = "html"
	KindCSV  = "csv"
)

// Artifact names one rendered output file.
type Artifact struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// CSV writes any record slice as a CSV file using its struct tags.
func CSV(records any, path string) (Artifact, error) {
	data, err := csvutil.Marshal(records)
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: fmt.Errorf("encode csv: %w", err)}
	}
	if err := writeFile(path, data); err != nil {
		return Artifact{}, err
	}
	return Artifact{Kind: KindCSV, Path: path}, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &domain.RenderError{Artifact: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &domain.RenderError{Artifact: path, Err: err}
	}
	return nil
}
