package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/docbridge/internal/dispatch"
	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/gate"
	"github.com/dgallion1/docbridge/internal/navigation"
	"github.com/dgallion1/docbridge/internal/workspace"
)

// ErrorBody is the wire form of a failed call.
type ErrorBody struct {
	Kind      errs.Kind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// Response is the result of one tool call: exactly one of Result or Error.
type Response struct {
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// OK reports whether the call succeeded.
func (r Response) OK() bool { return r.Error == nil }

// ErrorResponse converts any error into a Response.
func ErrorResponse(err error) Response {
	return Response{Error: errorBody(err)}
}

func errorBody(err error) *ErrorBody {
	kind := errs.KindOf(err)
	return &ErrorBody{Kind: kind, Message: err.Error(), Retryable: errs.IsRetryable(err)}
}

// Invoker runs tools: validate, admit through the gate, execute on the host
// loop, serialize.
type Invoker struct {
	reg  *Registry
	gate *gate.Gate
	disp *dispatch.Dispatcher
	ws   *workspace.Workspace
	log  *slog.Logger
}

func NewInvoker(reg *Registry, g *gate.Gate, d *dispatch.Dispatcher, ws *workspace.Workspace, log *slog.Logger) *Invoker {
	return &Invoker{reg: reg, gate: g, disp: d, ws: ws, log: log}
}

func (inv *Invoker) Registry() *Registry { return inv.reg }

// Invoke runs one tool call. The gate is held until the caller stops
// waiting, so a timed-out call frees the gate even if its closure has not
// run yet; the host loop still runs closures one at a time.
func (inv *Invoker) Invoke(ctx context.Context, name string, args Args) Response {
	start := time.Now()
	log := inv.log.With("tool", name)
	if args == nil {
		args = Args{}
	}

	tool, err := inv.reg.Validate(name, args)
	if err != nil {
		log.Info("tool call rejected", "error", err)
		return ErrorResponse(err)
	}

	release, err := inv.gate.Admit(ctx)
	if err != nil {
		log.Info("tool call not admitted", "error", err)
		return ErrorResponse(err)
	}
	defer release()

	value, err := inv.disp.Run(ctx, name, func() (any, error) {
		return tool.Run(inv.ws, args)
	})
	if err != nil {
		level := slog.LevelInfo
		if errs.KindOf(err) == errs.KindOperationFailed {
			level = slog.LevelError
		}
		log.Log(ctx, level, "tool call failed", "error", err, "kind", errs.KindOf(err), "duration_ms", time.Since(start).Milliseconds())
		return ErrorResponse(err)
	}
	log.Debug("tool call completed", "duration_ms", time.Since(start).Milliseconds())
	return Response{Result: value}
}

// Stats bundles gate and dispatcher activity.
type Stats struct {
	Gate     gate.Stats              `json:"gate"`
	Dispatch dispatch.Report         `json:"dispatch"`
	Headings navigation.HeadingStats `json:"heading_cache"`
	Pages    navigation.PageStats    `json:"page_cache"`
}

func (inv *Invoker) Stats() Stats {
	return Stats{
		Gate:     inv.gate.Stats(),
		Dispatch: inv.disp.Report(),
		Headings: inv.ws.Headings().Stats(),
		Pages:    inv.ws.Pages().Stats(),
	}
}

// Operations exposes the dispatcher's operation journal.
func (inv *Invoker) Operations() *dispatch.Journal { return inv.disp.Journal() }
