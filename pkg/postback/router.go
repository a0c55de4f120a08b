package postback

import (
	"context"
	"fmt"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// Router fans a finished batch out to the configured postback handlers.
// Handler failures are isolated: one failing destination never blocks the
// others.
type Router struct {
	handlers []Handler
	log      *logger.Logger
}

// NewRouter builds a router from handler configurations. Unknown handler
// types and handlers with invalid configuration are logged and skipped.
func NewRouter(handlerConfigs []config.HandlerConfig, log *logger.Logger) *Router {
	var handlers []Handler

	for _, cfg := range handlerConfigs {
		var handler Handler

		switch cfg.Type {
		case "csv":
			handler = NewCSVHandler(cfg, log)
		case "xlsx":
			handler = NewXLSXHandler(cfg, log)
		case "json":
			handler = NewJSONHandler(cfg, log)
		case "xml":
			handler = NewXMLHandler(cfg, log)
		case "webhook":
			handler = NewWebhookHandler(cfg, log)
		case "email":
			handler = NewEmailHandler(cfg, log)
		default:
			log.Errorf("Unknown postback handler type: %s", cfg.Type)
			continue
		}

		if err := handler.ValidateConfig(); err != nil {
			log.Errorf("Invalid configuration for %s postback handler: %v", cfg.Type, err)
			continue
		}

		handlers = append(handlers, handler)
		log.Infof("Initialized %s postback handler", cfg.Type)
	}

	return &Router{handlers: handlers, log: log}
}

// NewRouterFromHandlers builds a router from pre-constructed handlers,
// bypassing configuration
func NewRouterFromHandlers(handlers []Handler, log *logger.Logger) *Router {
	return &Router{handlers: handlers, log: log}
}

// HandlerCount returns the number of active handlers
func (r *Router) HandlerCount() int {
	return len(r.handlers)
}

// HandlerNames returns the names of the active handlers in order
func (r *Router) HandlerNames() []string {
	names := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		names = append(names, h.Name())
	}
	return names
}

// PostAll delivers the batch to every handler and reports per-handler
// success. A handler panic or error marks that handler false without
// affecting the rest.
func (r *Router) PostAll(ctx context.Context, rows []common.Row) map[string]bool {
	results := make(map[string]bool, len(r.handlers))

	for _, handler := range r.handlers {
		if err := r.postWithRecover(ctx, handler, rows); err != nil {
			r.log.Errorf("Postback handler %s failed: %v", handler.Name(), err)
			results[handler.Name()] = false
			continue
		}
		r.log.Infof("Postback handler %s delivered %d rows", handler.Name(), len(rows))
		results[handler.Name()] = true
	}

	return results
}

func (r *Router) postWithRecover(ctx context.Context, handler Handler, rows []common.Row) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler.Post(ctx, rows)
}
