package batch

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/cocoseg/internal/utils"
)

// discoverInDirectory lists the supported image files below dir.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if utils.IsSupportedImage(path) && shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}

		return nil
	}

	if err := filepath.Walk(dir, walkFn); err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks the base name of path against glob patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// fileResolver maps an image record's file_name onto a discovered file.
type fileResolver struct {
	byRel  map[string]string
	byBase map[string]string
}

func newFileResolver(root string, files []string) *fileResolver {
	r := &fileResolver{byRel: make(map[string]string, len(files)), byBase: make(map[string]string, len(files))}
	for _, f := range files {
		if rel, err := filepath.Rel(root, f); err == nil {
			r.byRel[filepath.ToSlash(rel)] = f
		}
		base := filepath.Base(f)
		if _, ok := r.byBase[base]; !ok {
			r.byBase[base] = f
		}
	}
	return r
}

// resolve tries the file_name as a path relative to the images directory
// first, then falls back to its base name.
func (r *fileResolver) resolve(fileName string) (string, bool) {
	if fileName == "" {
		return "", false
	}
	if p, ok := r.byRel[filepath.ToSlash(filepath.Clean(fileName))]; ok {
		return p, true
	}
	p, ok := r.byBase[filepath.Base(fileName)]
	return p, ok
}
