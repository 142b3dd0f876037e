package alpaca

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ginContext(t *testing.T, method, target, body, contentType string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body == "" {
		c.Request = httptest.NewRequest(method, target, nil)
	} else {
		c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if contentType != "" {
		c.Request.Header.Set("Content-Type", contentType)
	}
	return c
}

func TestParseTransaction(t *testing.T) {
	t.Run("from query", func(t *testing.T) {
		c := ginContext(t, "GET", "/x?ClientID=3&ClientTransactionID=42", "", "")
		tx := parseTransaction(c)
		assert.Equal(t, 3, tx.ClientID)
		assert.Equal(t, 42, tx.ClientTransactionID)
	})

	t.Run("absent", func(t *testing.T) {
		c := ginContext(t, "GET", "/x", "", "")
		tx := parseTransaction(c)
		assert.Zero(t, tx.ClientID)
		assert.Zero(t, tx.ClientTransactionID)
	})

	t.Run("garbage ignored", func(t *testing.T) {
		c := ginContext(t, "GET", "/x?ClientTransactionID=banana", "", "")
		assert.Zero(t, parseTransaction(c).ClientTransactionID)
	})
}

func TestParseBodyFallbackChain(t *testing.T) {
	t.Run("json by content type", func(t *testing.T) {
		c := ginContext(t, "PUT", "/x", `{"Connected": true, "Gain": 120}`, "application/json")
		params := parseBody(c)

		v, ok := params.get("Connected")
		require.True(t, ok)
		assert.Equal(t, "true", v)

		gain, err := params.integer("Gain")
		require.NoError(t, err)
		assert.Equal(t, 120, gain)
	})

	t.Run("json by leading brace", func(t *testing.T) {
		c := ginContext(t, "PUT", "/x", `{"Duration": 2.5}`, "text/plain")
		duration, err := parseBody(c).float("Duration")
		require.NoError(t, err)
		assert.Equal(t, 2.5, duration)
	})

	t.Run("form body", func(t *testing.T) {
		c := ginContext(t, "PUT", "/x", "RightAscension=12.5&Declination=-45.0", "application/x-www-form-urlencoded")
		params := parseBody(c)

		ra, err := params.float("RightAscension")
		require.NoError(t, err)
		assert.Equal(t, 12.5, ra)

		dec, err := params.float("declination")
		require.NoError(t, err)
		assert.Equal(t, -45.0, dec)
	})

	t.Run("manual split", func(t *testing.T) {
		// A semicolon makes url.ParseQuery refuse the whole body, which
		// pushes parsing down to the manual splitter.
		c := ginContext(t, "PUT", "/x", "Tracking=true&Note=a;b", "")
		tracking, err := parseBody(c).boolean("Tracking")
		require.NoError(t, err)
		assert.True(t, tracking)
	})

	t.Run("empty body", func(t *testing.T) {
		c := ginContext(t, "PUT", "/x", "", "")
		assert.Empty(t, parseBody(c))
	})
}

func TestParamAccessors(t *testing.T) {
	params := requestParams{"connected": "1", "rate": "-0.75", "axis": "1"}

	t.Run("boolean forms", func(t *testing.T) {
		for raw, want := range map[string]bool{"true": true, "TRUE": true, "1": true, "false": false, "0": false} {
			v, err := requestParams{"flag": raw}.boolean("Flag")
			require.NoError(t, err)
			assert.Equal(t, want, v)
		}
		_, err := requestParams{"flag": "yes"}.boolean("Flag")
		assert.Error(t, err)
	})

	t.Run("case insensitive lookup", func(t *testing.T) {
		v, err := params.boolean("Connected")
		require.NoError(t, err)
		assert.True(t, v)
	})

	t.Run("float", func(t *testing.T) {
		rate, err := params.float("Rate")
		require.NoError(t, err)
		assert.Equal(t, -0.75, rate)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := params.float("Duration")
		assert.Error(t, err)
	})
}
