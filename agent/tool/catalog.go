package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

// Executor runs a tool with arguments that already passed schema validation.
type Executor func(ctx context.Context, args map[string]any) (string, error)

type Definition struct {
	Name    string
	Desc    string
	Params  map[string]*schema.ParameterInfo
	Execute Executor
}

// Registry is the fixed catalog of tools exposed to the dialogue model.
type Registry struct {
	defs    map[string]Definition
	schemas map[string]*openapi3.Schema
	order   []string
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:    make(map[string]Definition, len(defs)),
		schemas: make(map[string]*openapi3.Schema, len(defs)),
	}
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
		}
		if d.Execute == nil {
			return nil, fmt.Errorf("%w: tool=%s has no executor", contractx.ErrValidation, name)
		}
		if _, dup := r.defs[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tool=%s", contractx.ErrValidation, name)
		}
		sc, err := argumentSchema(d.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: tool=%s schema: %v", contractx.ErrValidation, name, err)
		}
		d.Name = name
		r.defs[name] = d
		r.schemas[name] = sc
		r.order = append(r.order, name)
	}
	return r, nil
}

func MustNewRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Infos returns the model-facing tool descriptions in catalog order.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		d := r.defs[name]
		params := d.Params
		if params == nil {
			params = map[string]*schema.ParameterInfo{}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        d.Name,
			Desc:        d.Desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}

// Invoke validates raw JSON arguments and runs the tool. The returned invocation is always
// populated, even on error, so callers can record what the model asked for.
func (r *Registry) Invoke(ctx context.Context, name, rawArgs string) (contractx.ToolInvocation, error) {
	inv := contractx.ToolInvocation{
		Name:   strings.TrimSpace(name),
		Status: contractx.ToolPending,
	}

	d, ok := r.defs[inv.Name]
	if !ok {
		return reject(inv, fmt.Errorf("%w: %q (available: %s)", contractx.ErrUnknownTool, inv.Name, strings.Join(r.sortedNames(), ", ")))
	}

	args := map[string]any{}
	if trimmed := strings.TrimSpace(rawArgs); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			return reject(inv, fmt.Errorf("%w: tool=%s arguments are not a JSON object: %v", contractx.ErrToolArgumentInvalid, inv.Name, err))
		}
	}
	inv.Arguments = args

	if err := r.schemas[d.Name].VisitJSON(args); err != nil {
		return reject(inv, fmt.Errorf("%w: tool=%s: %s", contractx.ErrToolArgumentInvalid, inv.Name, describeArgError(err)))
	}

	result, err := d.Execute(ctx, args)
	if err != nil {
		return reject(inv, err)
	}
	inv.Result = result
	inv.Status = contractx.ToolResolved
	return inv, nil
}

func (r *Registry) sortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

func reject(inv contractx.ToolInvocation, err error) (contractx.ToolInvocation, error) {
	inv.Status = contractx.ToolRejected
	inv.Error = err.Error()
	return inv, err
}
