package alpaca

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// transaction carries the client-supplied correlation IDs. Both come from
// the query string only, never from the body.
type transaction struct {
	ClientID            int
	ClientTransactionID int
}

// parseTransaction extracts ClientID and ClientTransactionID from the URL.
// Absent or unparseable values are left at zero.
func parseTransaction(c *gin.Context) transaction {
	var tx transaction
	if v := c.Query("ClientID"); v != "" {
		tx.ClientID, _ = strconv.Atoi(v)
	}
	if v := c.Query("ClientTransactionID"); v != "" {
		tx.ClientTransactionID, _ = strconv.Atoi(v)
	}
	return tx
}

// requestParams holds the merged request parameters with lowercased keys.
// Alpaca clients disagree on parameter casing, so lookups are
// case-insensitive.
type requestParams map[string]string

// parseBody reads the request body through the fallback chain: JSON object,
// then URL-encoded form, then a manual key=value split. An empty body
// yields an empty map.
func parseBody(c *gin.Context) requestParams {
	params := requestParams{}
	if c.Request.Body == nil {
		return params
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		return params
	}

	trimmed := bytes.TrimSpace(body)
	contentType := strings.ToLower(c.ContentType())
	if strings.Contains(contentType, "application/json") || bytes.HasPrefix(trimmed, []byte("{")) {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			for k, v := range obj {
				params[strings.ToLower(k)] = stringify(v)
			}
			if len(params) > 0 {
				return params
			}
		}
	}

	if values, err := url.ParseQuery(string(body)); err == nil && len(values) > 0 {
		for k, vs := range values {
			if len(vs) > 0 {
				params[strings.ToLower(k)] = vs[0]
			}
		}
		if len(params) > 0 {
			return params
		}
	}

	// Last resort: split on & and = by hand.
	for _, pair := range strings.Split(string(body), "&") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		value, err := url.QueryUnescape(kv[1])
		if err != nil {
			value = kv[1]
		}
		params[strings.ToLower(strings.TrimSpace(kv[0]))] = value
	}
	return params
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// get looks a parameter up case-insensitively.
func (p requestParams) get(name string) (string, bool) {
	v, ok := p[strings.ToLower(name)]
	return v, ok
}

// float parses a named float parameter.
func (p requestParams) float(name string) (float64, error) {
	raw, ok := p.get(name)
	if !ok {
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", name, raw)
	}
	return v, nil
}

// integer parses a named integer parameter.
func (p requestParams) integer(name string) (int, error) {
	raw, ok := p.get(name)
	if !ok {
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", name, raw)
	}
	return v, nil
}

// boolean parses a named boolean parameter, accepting true/false and 1/0 in
// any casing.
func (p requestParams) boolean(name string) (bool, error) {
	raw, ok := p.get(name)
	if !ok {
		return false, fmt.Errorf("missing %s parameter", name)
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s value %q", name, raw)
}
