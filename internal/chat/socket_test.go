package chat

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginChecker(t *testing.T) {
	request := func(origin string) *http.Request {
		r := httptest.NewRequest("GET", "/socket", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	assert.True(t, open(request("https://anything.example")))
	assert.True(t, originChecker([]string{"*"})(request("https://anything.example")))

	check := originChecker([]string{"https://Desk.example.com/", " "})
	assert.True(t, check(request("https://desk.example.com")))
	assert.True(t, check(request("")))
	assert.False(t, check(request("https://evil.example.net")))
	assert.False(t, check(request("http://desk.example.com")))
}
