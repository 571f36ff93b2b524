package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

type operation struct {
	Responses map[string]struct{}
	// Required holds "in:name" for every required parameter.
	Required map[string]struct{}
	Secured  bool
}

type parsedSpec struct {
	Paths map[string]map[string]operation
}

func loadSpecFile(path string) (parsedSpec, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return parsedSpec{}, err
	}
	return parseSpec(raw)
}

// parseSpec reads a swagger 2.0 document. JSON input is accepted since it is valid YAML.
func parseSpec(raw []byte) (parsedSpec, error) {
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return parsedSpec{}, err
	}

	pathsMap, ok := toMap(doc["paths"])
	if !ok {
		return parsedSpec{}, errors.New("missing top-level paths object")
	}

	spec := parsedSpec{Paths: make(map[string]map[string]operation)}
	for pathKey, pathEntry := range pathsMap {
		pathOps, ok := toMap(pathEntry)
		if !ok {
			continue
		}

		ops := make(map[string]operation)
		for methodKey, methodEntry := range pathOps {
			method := strings.ToLower(strings.TrimSpace(methodKey))
			if _, supported := supportedMethods[method]; !supported {
				continue
			}
			if m, ok := toMap(methodEntry); ok {
				ops[method] = parseOperation(m)
			}
		}

		if len(ops) > 0 {
			spec.Paths[pathKey] = ops
		}
	}
	return spec, nil
}

func parseOperation(m map[string]interface{}) operation {
	op := operation{
		Responses: make(map[string]struct{}),
		Required:  make(map[string]struct{}),
	}

	if responses, ok := toMap(m["responses"]); ok {
		for code := range responses {
			if c := strings.ToLower(strings.TrimSpace(code)); c != "" {
				op.Responses[c] = struct{}{}
			}
		}
	}

	if params, ok := m["parameters"].([]interface{}); ok {
		for _, p := range params {
			pm, ok := toMap(p)
			if !ok {
				continue
			}
			if required, _ := pm["required"].(bool); required {
				op.Required[fmt.Sprintf("%v:%v", pm["in"], pm["name"])] = struct{}{}
			}
		}
	}

	if security, ok := m["security"].([]interface{}); ok && len(security) > 0 {
		op.Secured = true
	}
	return op
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// compare lists the changes in revision that would break a client written against base.
func compare(base, revision parsedSpec) []string {
	var issues []string

	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseOp := range baseOps {
			name := strings.ToUpper(method) + " " + path
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, "removed operation: "+name)
				continue
			}

			for code := range baseOp.Responses {
				if _, ok := revOp.Responses[code]; !ok {
					issues = append(issues, fmt.Sprintf("removed response code: %s -> %s", name, strings.ToUpper(code)))
				}
			}
			for param := range revOp.Required {
				if _, ok := baseOp.Required[param]; !ok {
					issues = append(issues, fmt.Sprintf("new required parameter: %s -> %s", name, param))
				}
			}
			if revOp.Secured && !baseOp.Secured {
				issues = append(issues, "now requires authentication: "+name)
			}
		}
	}

	sort.Strings(issues)
	return issues
}
