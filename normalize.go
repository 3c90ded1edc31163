package directlink

// linkKeys are the mapping keys that may hold a direct link, in priority
// order.
var linkKeys = []string{"download_link", "direct_link", "url", "link"}

// Result is the canonical outcome of resolving a share URL.
type Result struct {
	DirectLink string         `json:"direct_link"`
	FileInfo   map[string]any `json:"file_info"`
}

// Normalize extracts a direct link and its accompanying info object from a
// backend's raw result. It returns ErrNoDirectLink when no non-empty link can
// be found.
//
// Only the first element of a list is considered, and that element must be a
// mapping or a string.
func Normalize(v Value) (Result, error) {
	if list, ok := v.AsList(); ok {
		if len(list) == 0 {
			return Result{}, ErrNoDirectLink
		}
		v = list[0]
	}

	switch v.Kind() {
	case KindMapping:
		m, _ := v.AsMapping()
		if link, ok := findLink(m); ok {
			return Result{DirectLink: link, FileInfo: m}, nil
		}
	case KindText:
		if s, _ := v.AsText(); s != "" {
			return Result{DirectLink: s, FileInfo: map[string]any{"url": s}}, nil
		}
	}
	return Result{}, ErrNoDirectLink
}

func findLink(m map[string]any) (string, bool) {
	for _, key := range linkKeys {
		if s, ok := m[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
