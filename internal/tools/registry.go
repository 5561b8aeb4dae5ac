// Package tools defines the document tools and runs them: each invocation is
// admitted by the request gate and executed on the host loop.
package tools

import (
	"sort"
	"sync"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/workspace"
)

// ParamType is the JSON type a parameter accepts.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
)

// Param documents one tool argument.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required,omitempty"`
}

// Tool is a named operation on the workspace. Run executes on the host loop.
type Tool struct {
	Name        string                                                `json:"name"`
	Description string                                                `json:"description"`
	Params      []Param                                               `json:"params"`
	Mutates     bool                                                  `json:"mutates"`
	Run         func(ws *workspace.Workspace, args Args) (any, error) `json:"-"`
}

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate looks the tool up and checks required parameters and argument
// types. It runs before admission so bad calls never take the gate.
func (r *Registry) Validate(name string, args Args) (Tool, error) {
	t, ok := r.Get(name)
	if !ok {
		return Tool{}, errs.New(errs.KindUnknownTool, "unknown tool: %s", name)
	}
	if err := checkArgs(t, args); err != nil {
		return Tool{}, err
	}
	return t, nil
}

func checkArgs(t Tool, args Args) error {
	for _, p := range t.Params {
		if !args.Has(p.Name) {
			if p.Required {
				return errs.New(errs.KindInvalidArgument, "%s: missing required parameter %q", t.Name, p.Name)
			}
			continue
		}
		if err := checkType(args, p); err != nil {
			return err
		}
	}
	return nil
}

func checkType(args Args, p Param) error {
	var err error
	switch p.Type {
	case TypeString:
		_, err = args.String(p.Name)
	case TypeInteger:
		_, err = args.Int(p.Name, 0)
	case TypeBoolean:
		_, err = args.Bool(p.Name, false)
	case TypeArray:
		_, err = args.List(p.Name)
	}
	return err
}
