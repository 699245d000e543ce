package adapter

// Response is returned by every operation.
type Response struct {
	// Data is a Record, a []Record, or nil.
	Data any `json:"data"`

	// Op is the operation that produced the response.
	Op string `json:"op"`

	// Meta is the store's metadata for the call.
	Meta any `json:"meta,omitempty"`

	// Raw mirrors Options.Raw.
	Raw bool `json:"-"`

	Created int `json:"created,omitempty"`
	Found   int `json:"found,omitempty"`
	Updated int `json:"updated,omitempty"`
}

// Record returns Data as a single record, or nil.
func (r *Response) Record() Record {
	if r == nil {
		return nil
	}
	rec, _ := r.Data.(Record)
	return rec
}

// Records returns Data as a record list. A single record is wrapped.
func (r *Response) Records() []Record {
	if r == nil {
		return nil
	}
	switch d := r.Data.(type) {
	case []Record:
		return d
	case Record:
		return []Record{d}
	}
	return nil
}

// Value returns what a caller that did not ask for Raw should see: the data alone.
func (r *Response) Value() any {
	if r == nil {
		return nil
	}
	if r.Raw {
		return r
	}
	return r.Data
}

// buildResponse wraps data and sets the counter that belongs to op.
func buildResponse(op string, data any, meta any, opts *Options) *Response {
	resp := &Response{Data: data, Op: op, Meta: meta}
	if opts != nil {
		resp.Raw = opts.Raw
	}
	n := 0
	switch d := data.(type) {
	case Record:
		if d != nil {
			n = 1
		}
	case []Record:
		n = len(d)
	}
	switch op {
	case OpCreate, OpCreateMany:
		resp.Created = n
	case OpFind, OpFindAll:
		resp.Found = n
	case OpUpdate, OpUpdateAll, OpUpdateMany:
		resp.Updated = n
	}
	return resp
}
