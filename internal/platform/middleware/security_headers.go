package middleware

import (
	"github.com/labstack/echo/v4"
)

// hstsValue asks browsers to keep to HTTPS for a year.
const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders stamps every response with headers that keep patient and
// billing payloads out of frames, sniffers and caches. hsts adds
// Strict-Transport-Security and belongs only behind TLS.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	headers := [][2]string{
		{echo.HeaderXContentTypeOptions, "nosniff"},
		{echo.HeaderXFrameOptions, "DENY"},
		{echo.HeaderContentSecurityPolicy, "default-src 'none'; frame-ancestors 'none'"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
	}
	if hsts {
		headers = append(headers, [2]string{echo.HeaderStrictTransportSecurity, hstsValue})
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range headers {
				h.Set(kv[0], kv[1])
			}
			return next(c)
		}
	}
}
