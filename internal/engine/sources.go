package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/moby/patternmatcher"

	"github.com/roach88/chord/internal/ir"
)

// FileScheme is the optional URI scheme marker on file and dir sources.
const FileScheme = "fs://"

// ContextSource fetches external content for ctx nodes of one type.
// opts carries the ctx node's full property map.
type ContextSource interface {
	Fetch(ctx context.Context, uri string, opts ir.Object) (ir.Value, error)
}

// SourceFunc adapts a function to ContextSource.
type SourceFunc func(ctx context.Context, uri string, opts ir.Object) (ir.Value, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, uri string, opts ir.Object) (ir.Value, error) {
	return f(ctx, uri, opts)
}

// FileSource reads one file and returns its text.
type FileSource struct {
	// Root anchors relative URIs. Empty means the working directory.
	Root string
}

// Fetch implements ContextSource.
func (s FileSource) Fetch(ctx context.Context, uri string, _ ir.Object) (ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := localPath(s.Root, uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	return ir.String(data), nil
}

// DirSource reads every file under a directory whose slash-separated
// relative path matches an include pattern and no exclude pattern. The
// result maps relative paths to file text.
//
// Patterns use patternmatcher syntax ("**" spans directories). Include
// patterns are anchored at the directory root and default to "**/*".
// Exclude patterns are anchored at the right, so "*.log" excludes log files
// at any depth, and an excluded directory excludes everything below it.
type DirSource struct {
	// Root anchors relative URIs. Empty means the working directory.
	Root string
}

// Fetch implements ContextSource.
func (s DirSource) Fetch(ctx context.Context, uri string, opts ir.Object) (ir.Value, error) {
	root, err := localPath(s.Root, uri)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("read context dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	include, err := patternList(opts.Get("include"), []string{"**/*"})
	if err != nil {
		return nil, err
	}
	exclude, err := patternList(opts.Get("exclude"), nil)
	if err != nil {
		return nil, err
	}

	includeMatcher, err := patternmatcher.New(include)
	if err != nil {
		return nil, newError(ErrCodeInvalidSelector, uri, "invalid include pattern: %v", err)
	}
	excludeMatcher, err := patternmatcher.New(rightAnchored(exclude))
	if err != nil {
		return nil, newError(ErrCodeInvalidSelector, uri, "invalid exclude pattern: %v", err)
	}

	files := ir.Object{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if len(exclude) > 0 {
			excluded, err := excludeMatcher.MatchesOrParentMatches(rel)
			if err != nil {
				return err
			}
			if excluded {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if !d.Type().IsRegular() {
			return nil
		}

		included, err := includeMatcher.MatchesOrParentMatches(rel)
		if err != nil || !included {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files.Set(rel, ir.String(data))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk context dir: %w", err)
	}
	return files, nil
}

// localPath strips the scheme marker, expands a leading "~" and joins a
// relative result onto root.
func localPath(root, uri string) (string, error) {
	path := strings.TrimPrefix(uri, FileScheme)
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	if root != "" && !filepath.IsAbs(expanded) {
		expanded = filepath.Join(root, expanded)
	}
	return expanded, nil
}

// patternList reads a string or list-of-strings property.
func patternList(v ir.Value, def []string) ([]string, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return def, nil
	case ir.String:
		return []string{string(val)}, nil
	case ir.Array:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			s, ok := ir.AsString(elem)
			if !ok {
				return nil, newError(ErrCodeInvalidSelector, "", "pattern must be a string, got %s", ir.Inline(elem))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, newError(ErrCodeInvalidSelector, "", "patterns must be a string or list, got %s", ir.Inline(v))
	}
}

func rightAnchored(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(filepath.ToSlash(p), "./")
		if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "**/") || p == "**" {
			out = append(out, strings.TrimPrefix(p, "/"))
			continue
		}
		out = append(out, "**/"+p)
	}
	return out
}
