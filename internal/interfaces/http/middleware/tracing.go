// Package middleware provides the HTTP middleware chain for the setoff
// service.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracingServiceName = "setoff"

// maxRequestIDLength caps header-supplied request IDs before they are
// written into trace attributes.
const maxRequestIDLength = 128

// Tracing starts one server span per request via otelgin. Place
// SpanEnrichment directly after it so the span carries the request and
// tenant attributes.
func Tracing() gin.HandlerFunc {
	return otelgin.Middleware(tracingServiceName)
}

// SpanEnrichment runs inside the span opened by Tracing: it attaches
// request_id and tenant_id attributes up front and marks the span as
// errored when the response is 4xx/5xx.
func SpanEnrichment() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := spanRequestID(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if tenant := spanTenantID(c); tenant != "" {
				span.SetAttributes(attribute.String("tenant_id", tenant))
			}
		}

		c.Next()

		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}

func spanRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	id := c.GetHeader("X-Request-ID")
	if len(id) > maxRequestIDLength {
		id = id[:maxRequestIDLength]
	}
	return id
}

// spanTenantID accepts only well-formed UUIDs so arbitrary header
// content cannot leak into trace storage.
func spanTenantID(c *gin.Context) string {
	tenant := c.GetHeader("X-Tenant-ID")
	if tenant == "" {
		return ""
	}
	if _, err := uuid.Parse(tenant); err != nil {
		return ""
	}
	return tenant
}
