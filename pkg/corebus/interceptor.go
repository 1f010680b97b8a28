package corebus

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Interceptor wraps a Handler, grounded on the teacher's
// HandlerInterceptor chain in middleware.go: each interceptor decides
// whether/when to call next, letting cross-cutting concerns (logging,
// timing, auth) wrap method dispatch without the method itself knowing
// about them.
type Interceptor func(next Handler) Handler

// applyInterceptors composes interceptors around base so the first
// interceptor in the slice is outermost (runs first on the way in, last
// on the way out).
func applyInterceptors(base Handler, interceptors []Interceptor) Handler {
	h := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		h = interceptors[i](h)
	}
	return h
}

// LoggingInterceptor logs method name and duration for every dispatched
// call at debug level, and the error (if any) at warn level.
func LoggingInterceptor(log *logrus.Entry) Interceptor {
	return func(next Handler) Handler {
		return func(call *Call) error {
			start := time.Now()
			err := next(call)
			entry := log.WithField("method", call.Method).WithField("duration", time.Since(start))
			if err != nil {
				entry.WithError(err).Warn("method handler failed")
			} else {
				entry.Debug("method handler completed")
			}
			return err
		}
	}
}
