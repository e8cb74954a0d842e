package naver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemPage = `<html><body>
<div class="wrap_company">
  <h2><a href="#" onclick="return false;">삼성전자</a></h2>
  <div class="description"><span class="code">005930</span></div>
</div>
</body></html>`

func TestParseStockName(t *testing.T) {
	name, err := parseStockName(itemPage)
	require.NoError(t, err)
	assert.Equal(t, "삼성전자", name)

	_, err = parseStockName("<html><body><p>no company</p></body></html>")
	assert.Error(t, err)
}

func TestFetchStockName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/main.naver", r.URL.Path)
		assert.Equal(t, "005930", r.URL.Query().Get("code"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(itemPage))
	})

	name, err := client.FetchStockName(context.Background(), "005930")
	require.NoError(t, err)
	assert.Equal(t, "삼성전자", name)
}
