package adapter

import "context"

// Call carries the arguments of one operation through the hooks.
// Only the fields relevant to Op are set.
type Call struct {
	Op      string
	Mapper  *Mapper
	ID      any
	Props   Record
	Records []Record
	Query   Query
	Options *Options
}

// Hooks run immediately before and after every operation. Before may return a
// modified Call; After may return a replacement response. Returning an error
// from either aborts the operation.
type Hooks interface {
	Before(ctx context.Context, call Call) (Call, error)
	After(ctx context.Context, call Call, resp *Response) (*Response, error)
}

// NopHooks passes everything through unchanged.
type NopHooks struct{}

func (NopHooks) Before(_ context.Context, call Call) (Call, error) { return call, nil }

func (NopHooks) After(_ context.Context, _ Call, resp *Response) (*Response, error) {
	return resp, nil
}

// HookFuncs adapts plain functions to Hooks. Nil funcs pass through.
type HookFuncs struct {
	BeforeFunc func(ctx context.Context, call Call) (Call, error)
	AfterFunc  func(ctx context.Context, call Call, resp *Response) (*Response, error)
}

func (h HookFuncs) Before(ctx context.Context, call Call) (Call, error) {
	if h.BeforeFunc == nil {
		return call, nil
	}
	return h.BeforeFunc(ctx, call)
}

func (h HookFuncs) After(ctx context.Context, call Call, resp *Response) (*Response, error) {
	if h.AfterFunc == nil {
		return resp, nil
	}
	return h.AfterFunc(ctx, call, resp)
}
