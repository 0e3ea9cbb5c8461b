package messaging

type Middleware func(next Handler) Handler

// Chain wraps handler so that mws run in the given order before it.
func Chain(handler Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}
