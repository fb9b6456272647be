package synonym

import "context"

// Source produces the raw synonym object for a refresh
type Source interface {
	Load(ctx context.Context) (map[string]any, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (map[string]any, error)

// Load calls f
func (f SourceFunc) Load(ctx context.Context) (map[string]any, error) {
	return f(ctx)
}

// FileSource reloads a synonym JSON file on every refresh
type FileSource struct {
	Path string
}

// Load reads and decodes the file
func (s FileSource) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readJSONObject(s.Path)
}
