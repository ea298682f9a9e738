package acquisition

import "context"

// PageRenderer abstracts the headless-browser capability used to turn a live
// page into text. Implementations live outside this package.
type PageRenderer interface {
	// RenderText loads the page at url and returns its readable body text.
	RenderText(ctx context.Context, url string) (string, error)
}

// ArtifactLoader turns a stored artifact into page-level documents.
type ArtifactLoader interface {
	LoadPages(path string) ([]string, error)
}
