package tools

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/workspace"
)

// MaxBatchSteps caps the number of operations in one batch.
const MaxBatchSteps = 50

// StepResult is the outcome of one batch step.
type StepResult struct {
	Step   int        `json:"step"`
	Tool   string     `json:"tool"`
	OK     bool       `json:"success"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Success    bool         `json:"success"`
	Steps      []StepResult `json:"steps"`
	Completed  int          `json:"completed"`
	Total      int          `json:"total"`
	Stopped    bool         `json:"stopped"`
	StopReason string       `json:"stop_reason,omitempty"`
}

type batchStep struct {
	tool Tool
	args Args
}

// batchTool runs several tools inside one gate admission and one host loop
// closure, so no other call can interleave with the steps.
func batchTool(reg *Registry) Tool {
	return Tool{
		Name: "batch",
		Description: "Run up to 50 tool calls in order as one operation. String arguments may use " +
			"$last / $last+N / $last-N (paragraph index from the previous step), $step.N / $step.N+M, " +
			"$last.bookmark and $step.N.bookmark (bookmark locator from that step).",
		Params: []Param{
			{Name: "operations", Type: TypeArray, Required: true, Description: `List of {"tool": name, "args": {...}}.`},
			{Name: "stop_on_error", Type: TypeBoolean, Description: "Stop at the first failing step. Default true."},
		},
		Mutates: true,
		Run: func(ws *workspace.Workspace, a Args) (any, error) {
			steps, err := planBatch(reg, a)
			if err != nil {
				return nil, err
			}
			stopOnError, err := a.Bool("stop_on_error", true)
			if err != nil {
				return nil, err
			}
			return runBatch(ws, steps, stopOnError), nil
		},
	}
}

// planBatch validates every step before anything runs. Steps whose
// arguments reference batch variables are checked after substitution.
func planBatch(reg *Registry, a Args) ([]batchStep, error) {
	ops, err := a.List("operations")
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, errs.New(errs.KindInvalidArgument, "batch: no operations")
	}
	if len(ops) > MaxBatchSteps {
		return nil, errs.New(errs.KindInvalidArgument, "batch: %d operations exceeds the limit of %d", len(ops), MaxBatchSteps)
	}

	steps := make([]batchStep, 0, len(ops))
	var problems []string
	for i, raw := range ops {
		op, ok := Object(raw)
		if !ok {
			problems = append(problems, fmt.Sprintf("step %d: expected an object", i+1))
			continue
		}
		name, _ := op.String("tool")
		args, ok := Object(op["args"])
		if !ok {
			problems = append(problems, fmt.Sprintf("step %d: args must be an object", i+1))
			continue
		}
		if name == "batch" {
			problems = append(problems, fmt.Sprintf("step %d: nested batch is not allowed", i+1))
			continue
		}
		tool, ok := reg.Get(name)
		if !ok {
			problems = append(problems, fmt.Sprintf("step %d: unknown tool %q", i+1, name))
			continue
		}
		if !hasVars(args) {
			if _, err := reg.Validate(name, args); err != nil {
				problems = append(problems, fmt.Sprintf("step %d: %v", i+1, err))
				continue
			}
		}
		steps = append(steps, batchStep{tool: tool, args: args})
	}
	if len(problems) > 0 {
		return nil, errs.New(errs.KindInvalidArgument, "batch validation failed, nothing was executed: %s", strings.Join(problems, "; "))
	}
	return steps, nil
}

func runBatch(ws *workspace.Workspace, steps []batchStep, stopOnError bool) BatchResult {
	res := BatchResult{Total: len(steps), Steps: make([]StepResult, 0, len(steps))}
	vars := make(batchVars)
	for i, st := range steps {
		sr := StepResult{Step: i + 1, Tool: st.tool.Name}
		args := vars.substitute(st.args).(Args)

		value, err := runStep(ws, st.tool, args)
		if err != nil {
			sr.Error = errorBody(err)
		} else {
			sr.OK = true
			sr.Result = value
			res.Completed++
			if loc, ok := value.(workspace.Located); ok {
				vars.bind(i+1, loc)
			}
		}
		res.Steps = append(res.Steps, sr)

		if err != nil && stopOnError {
			res.Stopped = true
			res.StopReason = fmt.Sprintf("step %d (%s) failed", i+1, st.tool.Name)
			break
		}
	}
	res.Success = res.Completed == res.Total
	return res
}

func runStep(ws *workspace.Workspace, tool Tool, args Args) (any, error) {
	if err := checkArgs(tool, args); err != nil {
		return nil, err
	}
	value, err := tool.Run(ws, args)
	if err != nil {
		if _, ok := errs.As(err); !ok {
			err = errs.Wrap(errs.KindOperationFailed, err, "%s failed", tool.Name)
		}
	}
	return value, err
}

var varPattern = regexp.MustCompile(`\$(?:last\.bookmark|last(?:([+-])(\d+))?|step\.(\d+)\.bookmark|step\.(\d+)(?:([+-])(\d+))?)`)

// batchVars holds $last, $step.N and their .bookmark forms.
type batchVars map[string]any

func (v batchVars) bind(step int, loc workspace.Located) {
	idx, bookmark := loc.Location()
	if idx >= 0 {
		v["$last"] = idx
		v["$step."+strconv.Itoa(step)] = idx
	}
	if bookmark != "" {
		v["$last.bookmark"] = bookmark
		v["$step."+strconv.Itoa(step)+".bookmark"] = bookmark
	}
}

// substitute walks an argument value. A string that is exactly one
// numeric variable becomes an integer; variables embedded in text are
// replaced in place. Unbound variables are left as written.
func (v batchVars) substitute(val any) any {
	switch t := val.(type) {
	case Args:
		out := make(Args, len(t))
		for k, x := range t {
			out[k] = v.substitute(x)
		}
		return out
	case map[string]any:
		return map[string]any(v.substitute(Args(t)).(Args))
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = v.substitute(x)
		}
		return out
	case string:
		if !strings.Contains(t, "$") {
			return t
		}
		if m := varPattern.FindStringSubmatchIndex(t); m != nil && m[0] == 0 && m[1] == len(t) {
			s := v.resolve(t, m)
			if n, err := strconv.Atoi(s); err == nil {
				return n
			}
			return s
		}
		return varPattern.ReplaceAllStringFunc(t, func(match string) string {
			return v.resolve(match, varPattern.FindStringSubmatchIndex(match))
		})
	}
	return val
}

// resolve expands one variable match. m holds submatch indexes into s.
func (v batchVars) resolve(s string, m []int) string {
	full := s[m[0]:m[1]]
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return s[m[2*i]:m[2*i+1]]
	}

	switch {
	case full == "$last.bookmark":
		if bm, ok := v["$last.bookmark"].(string); ok {
			return "bookmark:" + bm
		}
		return full
	case strings.HasSuffix(full, ".bookmark"):
		if bm, ok := v["$step."+group(3)+".bookmark"].(string); ok {
			return "bookmark:" + bm
		}
		return full
	case strings.HasPrefix(full, "$last"):
		return v.offset("$last", group(1), group(2), full)
	default:
		return v.offset("$step."+group(4), group(5), group(6), full)
	}
}

func (v batchVars) offset(key, sign, amount, full string) string {
	base, ok := v[key].(int)
	if !ok {
		return full
	}
	n := 0
	if amount != "" {
		n, _ = strconv.Atoi(amount)
	}
	if sign == "-" {
		n = -n
	}
	return strconv.Itoa(base + n)
}

func hasVars(a Args) bool {
	for _, x := range a {
		if s, ok := x.(string); ok && strings.Contains(s, "$") {
			return true
		}
	}
	return false
}
