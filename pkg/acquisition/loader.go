package acquisition

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExtensionLoader dispatches artifact loading by file extension, so a PDF
// parser can be plugged in next to the built-in text loader.
type ExtensionLoader map[string]ArtifactLoader

func (e ExtensionLoader) LoadPages(path string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := e[ext]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %q artifacts", ext)
	}
	return loader.LoadPages(path)
}

// textLoader reads rendered-page artifacts. Form feeds mark page boundaries;
// without them the whole file is one page.
type textLoader struct{}

// NewTextLoader returns the loader for .txt artifacts.
func NewTextLoader() ArtifactLoader { return textLoader{} }

func (textLoader) LoadPages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pages []string
	for _, page := range strings.Split(string(data), "\f") {
		if strings.TrimSpace(page) != "" {
			pages = append(pages, page)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("artifact %s contained no text", filepath.Base(path))
	}
	return pages, nil
}
