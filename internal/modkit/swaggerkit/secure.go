package swaggerkit

import "strings"

// securedPaths records operations mounted behind bearer auth, keyed by
// swagger path then lowercased method. Registration happens during route
// mounting, before the server accepts traffic, so no lock is needed
var securedPaths = map[string]map[string]bool{}

// MarkSecurePath records that an operation is served behind bearer auth so
// the doc JSON can advertise the security requirement. Paths with chi
// wildcards have no swagger representation and are skipped
func MarkSecurePath(path, method string) {
	path = strings.TrimSpace(path)
	if path == "" || strings.Contains(path, "*") {
		return
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return
	}
	ops, ok := securedPaths[path]
	if !ok {
		ops = map[string]bool{}
		securedPaths[path] = ops
	}
	ops[method] = true
}

// applySecurity stamps the bearer scheme and the recorded per-operation
// security requirements onto the parsed spec
func applySecurity(spec map[string]any) {
	if len(securedPaths) == 0 {
		return
	}

	comps, ok := spec["components"].(map[string]any)
	if !ok {
		comps = map[string]any{}
		spec["components"] = comps
	}
	schemes, ok := comps["securitySchemes"].(map[string]any)
	if !ok {
		schemes = map[string]any{}
		comps["securitySchemes"] = schemes
	}
	if _, ok := schemes["BearerAuth"]; !ok {
		schemes["BearerAuth"] = map[string]any{
			"type":   "http",
			"scheme": "bearer",
		}
	}

	paths, ok := spec["paths"].(map[string]any)
	if !ok {
		return
	}
	for path, methods := range securedPaths {
		node, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		for method := range methods {
			op, ok := node[method].(map[string]any)
			if !ok {
				continue
			}
			if _, exists := op["security"]; exists {
				continue
			}
			op["security"] = []any{
				map[string]any{"BearerAuth": []any{}},
			}
		}
	}
}
