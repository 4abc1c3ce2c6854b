package tracing

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/rfacto/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrCallerID   = "enduser.id"
	AttrCallerRole = "enduser.role"
	AttrResource   = "rfacto.resource"
	AttrClaimID    = "rfacto.claim_id"
	AttrTargetID   = "rfacto.target_id"
	AttrFileID     = "rfacto.file_id"
)

// GinMiddleware opens one server span per API request. Once the handler has
// run, the span names the route, the caller and the record it touched.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("rfacto/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + c.Request.Method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)
		span.SetAttributes(SafeAttributes(requestAttributes(c, route)...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

// requestAttributes reads the caller set by the auth middleware and the ids
// in the route. Claim routes report their id as rfacto.claim_id.
func requestAttributes(c *gin.Context, route string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if email, role := obscontext.ActorFromContext(c.Request.Context()); email != "" {
		attrs = append(attrs,
			attribute.String(AttrCallerID, CallerID(email)),
			attribute.String(AttrCallerRole, role),
		)
	}

	resource := resourceOf(route)
	if resource != "" {
		attrs = append(attrs, attribute.String(AttrResource, resource))
	}
	if id := c.Param("id"); id != "" {
		key := AttrTargetID
		if resource == "claims" {
			key = AttrClaimID
		}
		attrs = append(attrs, attribute.String(key, id))
	}
	if fileID := c.Param("fileId"); fileID != "" {
		attrs = append(attrs, attribute.String(AttrFileID, fileID))
	}
	return attrs
}

// resourceOf returns "claims" for "/api/claims/:id/files".
func resourceOf(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok {
		return ""
	}
	resource, _, _ := strings.Cut(rest, "/")
	return resource
}

// CallerID is a stable pseudonym for an email. Spans never carry the
// address itself.
func CallerID(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:8])
}
