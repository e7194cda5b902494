package viewer

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"tapeview/internal/static"
	"tapeview/internal/templates"
)

func TestMain(m *testing.M) {
	if err := templates.Init(static.StyleAssetPath); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestMux(t *testing.T, raw []any) (*http.ServeMux, *Dispatcher) {
	t.Helper()
	d := newTestDispatcher(t, raw)
	h := NewHandler(d, "")
	h.now = func() time.Time { return time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC) }
	mux := http.NewServeMux()
	h.Register(mux)
	return mux, d
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

// parsePage returns the rendered item rows and the empty-state text.
func parsePage(t *testing.T, body string) (rows []string, empty string) {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			switch attr(n, "class") {
			case "item":
				rows = append(rows, text(firstCell(n)))
			case "empty":
				empty = strings.TrimSpace(text(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows, empty
}

func firstCell(tr *html.Node) *html.Node {
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" {
			return c
		}
	}
	return tr
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func TestPageEmptyCatalogMessage(t *testing.T) {
	mux, _ := newTestMux(t, nil)
	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rows, empty := parsePage(t, rr.Body.String())
	assert.Empty(t, rows)
	assert.Equal(t, "The catalog is empty. Add an item or import JSON.", empty)
}

func TestPageFiltersAndNoMatchMessage(t *testing.T) {
	mux, _ := newTestMux(t, fixture())

	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/?q=brown&sort=price_asc", nil))
	rows, _ := parsePage(t, rr.Body.String())
	require.Len(t, rows, 1)
	assert.Equal(t, "B-2", rows[0])

	// A bare reload keeps the current filter.
	rr = serve(mux, httptest.NewRequest(http.MethodGet, "/", nil))
	rows, _ = parsePage(t, rr.Body.String())
	assert.Len(t, rows, 1)

	rr = serve(mux, httptest.NewRequest(http.MethodGet, "/?q=nope", nil))
	rows, empty := parsePage(t, rr.Body.String())
	assert.Empty(t, rows)
	assert.Equal(t, "No results for these filters.", empty)

	rr = serve(mux, httptest.NewRequest(http.MethodPost, "/reset", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	rr = serve(mux, httptest.NewRequest(http.MethodGet, "/", nil))
	rows, _ = parsePage(t, rr.Body.String())
	assert.Equal(t, []string{"B-2", "A-1"}, rows)
}

func TestAddItemFlow(t *testing.T) {
	mux, _ := newTestMux(t, fixture())

	form := url.Values{"id": {"C-3"}, "title": {"Masking tape"}, "price_uah": {"12,50"}}
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(mux, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "notice=Added")

	rr = serve(mux, httptest.NewRequest(http.MethodGet, "/?q=C-3", nil))
	rows, _ := parsePage(t, rr.Body.String())
	assert.Equal(t, []string{"C-3"}, rows)
}

func TestAddItemValidationReopensForm(t *testing.T) {
	mux, d := newTestMux(t, fixture())

	form := url.Values{"id": {"A-1"}, "title": {"Duplicate"}}
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(mux, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="addForm"`)
	assert.Contains(t, body, `value="Duplicate"`)
	assert.Contains(t, body, "already exists")
	assert.Equal(t, 2, d.Current().Model.Summary.Total)
}

// stockChecked reports whether the add form's in-stock box is ticked.
func stockChecked(t *testing.T, body string) bool {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)

	var found, checked bool
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" && attr(n, "id") == "f_stock" {
			found = true
			for _, a := range n.Attr {
				if a.Key == "checked" {
					checked = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	require.True(t, found, "add form not rendered")
	return checked
}

func TestAddFormDefaultsToInStock(t *testing.T) {
	mux, _ := newTestMux(t, fixture())

	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/?add=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, stockChecked(t, rr.Body.String()))

	form := url.Values{"id": {"A-1"}, "title": {"Duplicate"}}
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = serve(mux, req)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.False(t, stockChecked(t, rr.Body.String()), "a rejected form keeps what was submitted")
}

func multipartImport(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportFlow(t *testing.T) {
	mux, d := newTestMux(t, fixture())

	rr := serve(mux, multipartImport(t, "bad.json", `{"other": 1}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Import error")
	assert.Equal(t, 2, d.Current().Model.Summary.Total)

	rr = serve(mux, multipartImport(t, "good.json", `{"items":[{"id":"Z","title":"Zed"}]}`))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, 1, d.Current().Model.Summary.Total)
}

func TestExportJSON(t *testing.T) {
	mux, _ := newTestMux(t, fixture())
	serve(mux, httptest.NewRequest(http.MethodGet, "/?q=clear", nil))

	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/export", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="tape_export_2024-03-09_080706_1.json"`, rr.Header().Get("Content-Disposition"))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "A-1", got[0]["id"])
}

func TestExportXLSXAndSchema(t *testing.T) {
	mux, _ := newTestMux(t, fixture())

	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/export.xlsx", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))

	rr = serve(mux, httptest.NewRequest(http.MethodGet, "/schema.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "price_uah")
}
