/*
Package tracing tags every HTTP request with a request id and logs one
span per request.

The id comes from the X-Request-ID header when the presentation layer sends
one, otherwise a fresh req_* id is generated. It is stored in the request
context and echoed in the response header so host logs and client logs can
be joined.

# Usage

	tracer := tracing.New(logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// later, inside a handler
	logger.Info("launching", zap.String("request_id", tracing.RequestID(ctx)))

Spans are handed to a buffered collector so logging never blocks a request;
when the buffer is full the span is dropped and counted.
*/
package tracing
