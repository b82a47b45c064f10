package daemon

import (
	"sort"
	"strings"

	"github.com/lms-scan/lms-scan/internal/config"
)

// ScanRequest maps a category name to the paths requested within it,
// spec.md §4.6's `{category -> [path,...]}`.
type ScanRequest map[string][]string

// canonicalizeRequest applies spec.md §4.6's request canonicalization:
// unknown categories are dropped (with a warning returned to the caller to
// log), an empty path list for a known category substitutes that
// category's configured defaults, a fully empty request substitutes every
// configured category's defaults, and each remaining path is rejected if
// it falls outside the category's configured roots — except that the
// defaults substitution path is exempt from that check, per spec.md §9's
// explicit asymmetry note.
func canonicalizeRequest(categories map[string]config.CategoryConfig, req ScanRequest) (ScanRequest, []string) {
	var warnings []string
	out := make(ScanRequest)

	if len(req) == 0 {
		for name, cat := range categories {
			out[name] = collapsePrefixes(cat.Dirs)
		}
		return out, warnings
	}

	for name, paths := range req {
		cat, ok := categories[name]
		if !ok {
			warnings = append(warnings, "unknown category "+name+" dropped from scan request")
			continue
		}

		if len(paths) == 0 {
			out[name] = collapsePrefixes(cat.Dirs)
			continue
		}

		var kept []string
		for _, p := range paths {
			if !underAnyRoot(p, cat.Dirs) {
				warnings = append(warnings, "path "+p+" outside configured roots for category "+name+", dropped")
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) > 0 {
			out[name] = collapsePrefixes(kept)
		}
	}

	return out, warnings
}

// collapsePrefixes removes any path that has another, shorter path in the
// set as a path-component prefix: the shorter root already covers
// everything under it, so the longer entry is redundant. Spec.md §4.6
// calls this "deduplicated so that no pending path is a prefix of
// another (the longest unique prefixes win)".
func collapsePrefixes(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	sorted := append([]string(nil), paths...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })

	var kept []string
	for _, p := range sorted {
		covered := false
		for _, k := range kept {
			if isPathPrefix(k, p) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, p)
		}
	}
	return kept
}

// mergeRequests folds add into base in place, used by the pending queue to
// accumulate scan requests that arrive while a scan is running.
func mergeRequests(base, add ScanRequest) ScanRequest {
	if base == nil {
		base = make(ScanRequest)
	}
	for cat, paths := range add {
		base[cat] = collapsePrefixes(append(base[cat], paths...))
	}
	return base
}

func underAnyRoot(path string, roots []string) bool {
	for _, root := range roots {
		if isPathPrefix(root, path) {
			return true
		}
	}
	return false
}

// isPathPrefix reports whether child is root itself or lies under it,
// comparing whole path components so "/mnt/media2" doesn't falsely match
// root "/mnt/media".
func isPathPrefix(root, child string) bool {
	root = strings.TrimRight(root, "/")
	if root == "" {
		root = "/"
	}
	if child == root {
		return true
	}
	return strings.HasPrefix(child, root+"/")
}
