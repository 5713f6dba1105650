// Package middleware holds echo middleware shared by the HTTP surfaces.
package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/labstack/echo/v4"
)

// TwilioParamsKey is the context key the validated webhook form fields are
// stored under.
const TwilioParamsKey = "twilioParams"

// ValidateTwilioSignature checks the X-Twilio-Signature HMAC over the request
// URL plus the sorted form parameters.
func ValidateTwilioSignature(authToken, signature, requestURL string, params map[string]string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	data := requestURL
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// TwilioAuth verifies webhook authenticity and stashes the parsed form fields
// in the context. Meant for the /twilio route group.
func TwilioAuth(authToken string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authToken == "" {
				return c.String(http.StatusInternalServerError, "webhook auth not configured")
			}

			bodyBytes, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return c.String(http.StatusBadRequest, "failed to read request body")
			}
			formData, err := url.ParseQuery(string(bodyBytes))
			if err != nil {
				return c.String(http.StatusBadRequest, "failed to parse form data")
			}
			params := make(map[string]string)
			for key, values := range formData {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}

			signature := c.Request().Header.Get("X-Twilio-Signature")
			// Twilio signs the full URL, query string included.
			requestURL := fmt.Sprintf("https://%s%s", c.Request().Host, c.Request().URL.Path)
			if rawQuery := c.Request().URL.RawQuery; rawQuery != "" {
				requestURL += "?" + rawQuery
			}
			if !ValidateTwilioSignature(authToken, signature, requestURL, params) {
				return c.String(http.StatusUnauthorized, "invalid signature")
			}

			c.Set(TwilioParamsKey, params)
			return next(c)
		}
	}
}

// TwilioParams pulls the validated form fields back out of the context.
func TwilioParams(c echo.Context) (map[string]string, bool) {
	params, ok := c.Get(TwilioParamsKey).(map[string]string)
	return params, ok
}
