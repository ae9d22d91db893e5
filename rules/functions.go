package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Function is a helper callable from guard expressions. Arguments arrive in
// the JSON shapes snapshots are normalised to.
type Function func(args ...any) (any, error)

// FunctionRegistry holds guard helpers keyed by lower-cased name. Names must
// be identifiers every engine accepts: letters, digits and underscores, not
// starting with a digit.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// PathFunctions returns a registry preloaded with helpers that read a
// snapshot by tracked path, in the notation used by mutable.Describe:
//
//	path(value, "home[0].street")  the value at the path, or nil
//	has_path(value, "home[0]")     whether the path resolves
//	paths(value)                   every leaf path, sorted
func PathFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	r.functions["path"] = func(args ...any) (any, error) {
		value, path, err := pathArgs("path", args)
		if err != nil {
			return nil, err
		}
		found, _ := Resolve(value, path)
		return found, nil
	}
	r.functions["has_path"] = func(args ...any) (any, error) {
		value, path, err := pathArgs("has_path", args)
		if err != nil {
			return nil, err
		}
		_, ok := Resolve(value, path)
		return ok, nil
	}
	r.functions["paths"] = func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("rules: paths expects 1 argument, got %d", len(args))
		}
		leaves := LeafPaths(args[0])
		out := make([]any, len(leaves))
		for i, leaf := range leaves {
			out[i] = leaf
		}
		return out, nil
	}
	return r
}

func pathArgs(name string, args []any) (any, string, error) {
	if len(args) != 2 {
		return nil, "", fmt.Errorf("rules: %s expects 2 arguments, got %d", name, len(args))
	}
	path, ok := args[1].(string)
	if !ok {
		return nil, "", fmt.Errorf("rules: %s path must be a string, got %T", name, args[1])
	}
	return args[0], path, nil
}

// Register stores fn under name, rejecting duplicates and invalid names.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("rules: function %q is nil", name)
	}
	if !validFunctionName(name) {
		return fmt.Errorf("rules: invalid function name %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("rules: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

func validFunctionName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Clone returns a copy isolated from later registrations.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		out.functions[name] = fn
	}
	return out
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("rules: no functions registered")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("rules: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type pathSegment struct {
	key   string
	index int // -1 for map keys
}

// Resolve walks a normalised snapshot along path (`home[0].street`). The
// empty path resolves to value itself. Keys containing '.' or '[' cannot be
// addressed.
func Resolve(value any, path string) (any, bool) {
	segments, ok := parsePath(path)
	if !ok {
		return nil, false
	}
	current := value
	for _, seg := range segments {
		switch node := current.(type) {
		case map[string]any:
			if seg.index >= 0 {
				return nil, false
			}
			next, ok := node[seg.key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			if seg.index < 0 || seg.index >= len(node) {
				return nil, false
			}
			current = node[seg.index]
		default:
			return nil, false
		}
	}
	return current, true
}

func parsePath(path string) ([]pathSegment, bool) {
	if path == "" {
		return nil, true
	}
	var out []pathSegment
	for i, part := range strings.Split(path, ".") {
		name, tail, _ := strings.Cut(part, "[")
		if name == "" && (i > 0 || tail == "") {
			return nil, false
		}
		if name != "" {
			out = append(out, pathSegment{key: name, index: -1})
		}
		for tail != "" {
			end := strings.IndexByte(tail, ']')
			if end < 0 {
				return nil, false
			}
			n, err := strconv.Atoi(tail[:end])
			if err != nil || n < 0 {
				return nil, false
			}
			out = append(out, pathSegment{index: n})
			tail = tail[end+1:]
			if tail == "" {
				break
			}
			if tail[0] != '[' {
				return nil, false
			}
			tail = tail[1:]
		}
	}
	return out, true
}

// LeafPaths lists the leaf paths of a normalised snapshot, sorted. Empty
// containers count as leaves.
func LeafPaths(value any) []string {
	var out []string
	collectPaths(value, "", &out)
	sort.Strings(out)
	return out
}

func collectPaths(value any, prefix string, out *[]string) {
	switch node := value.(type) {
	case map[string]any:
		if len(node) == 0 && prefix != "" {
			*out = append(*out, prefix)
		}
		for key, child := range node {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			collectPaths(child, next, out)
		}
	case []any:
		if len(node) == 0 && prefix != "" {
			*out = append(*out, prefix)
		}
		for i, child := range node {
			collectPaths(child, prefix+"["+strconv.Itoa(i)+"]", out)
		}
	default:
		if prefix != "" {
			*out = append(*out, prefix)
		}
	}
}
