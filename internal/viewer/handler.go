package viewer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"tapeview/internal/catalog"
	"tapeview/internal/templates"
	"tapeview/internal/transfer"
)

const maxUpload = 32 << 20

type SortOption struct {
	Value catalog.SortMode
	Label string
}

var sortOptions = []SortOption{
	{catalog.SortPriceAsc, "Price ↑"},
	{catalog.SortPriceDesc, "Price ↓"},
	{catalog.SortLengthAsc, "Length ↑"},
	{catalog.SortLengthDesc, "Length ↓"},
	{catalog.SortTitleAsc, "Title A–Z"},
	{catalog.SortTitleDesc, "Title Z–A"},
}

type pageData struct {
	State
	SortOptions []SortOption
	Notice      string
	Error       string
	FormOpen    bool
	Form        map[string]string
}

type handler struct {
	d        *Dispatcher
	dataFile string
	now      func() time.Time
}

// NewHandler serves the catalog page and its actions. dataFile, when set,
// is exposed at /data/products.json.
func NewHandler(d *Dispatcher, dataFile string) *handler {
	return &handler{d: d, dataFile: dataFile, now: time.Now}
}

func (h *handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handlePage)
	mux.HandleFunc("GET /index.html", h.handlePage)
	mux.HandleFunc("POST /reset", h.handleReset)
	mux.HandleFunc("POST /items", h.handleAdd)
	mux.HandleFunc("POST /import", h.handleImport)
	mux.HandleFunc("GET /export", h.handleExport)
	mux.HandleFunc("GET /export.xlsx", h.handleExportXLSX)
	mux.HandleFunc("GET /schema.json", h.handleSchema)
	if h.dataFile != "" {
		mux.HandleFunc("GET /data/products.json", h.handleDataFile)
	}
}

func (h *handler) handlePage(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	var st State
	if q, ok := catalog.ParseQuery(params); ok {
		st = h.d.SetQuery(q)
	} else {
		st = h.d.Current()
	}
	h.render(w, r, http.StatusOK, pageData{
		State:    st,
		Notice:   params.Get("notice"),
		FormOpen: params.Get("add") == "1",
	})
}

func (h *handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.d.Reset()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	item := itemFromForm(r.PostForm)
	st, err := h.d.AddItem(ctx, item)
	if err != nil {
		var verr *catalog.ValidationError
		if !errors.As(err, &verr) {
			slog.ErrorContext(ctx, "failed to add item", "error", err)
			http.Error(w, "unable to add item", http.StatusInternalServerError)
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, pageData{
			State:    st,
			Error:    verr.Error(),
			FormOpen: true,
			Form:     formEcho(r.PostForm),
		})
		return
	}
	redirectNotice(w, r, "Added: "+item.ID)
}

func (h *handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.render(w, r, http.StatusBadRequest, pageData{State: h.d.Current(), Error: "Choose a file to import."})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read upload", "file", header.Filename, "error", err)
		h.render(w, r, http.StatusBadRequest, pageData{State: h.d.Current(), Error: "Import error: unable to read file"})
		return
	}
	n, err := h.d.Import(ctx, header.Filename, data)
	if err != nil {
		slog.WarnContext(ctx, "import rejected", "file", header.Filename, "error", err)
		h.render(w, r, http.StatusBadRequest, pageData{State: h.d.Current(), Error: "Import error: " + err.Error()})
		return
	}
	redirectNotice(w, r, fmt.Sprintf("Imported: %d", n))
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	items := h.d.ExportItems()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(transfer.ExportName(h.now(), len(items))))
	if err := transfer.Export(w, items); err != nil {
		slog.ErrorContext(r.Context(), "failed to export catalog", "error", err)
	}
}

func (h *handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	items := h.d.ExportItems()
	var buf bytes.Buffer
	if err := transfer.ExportXLSX(&buf, items); err != nil {
		slog.ErrorContext(r.Context(), "failed to build xlsx export", "error", err)
		http.Error(w, "unable to export", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(transfer.ExportXLSXName(h.now(), len(items))))
	if _, err := buf.WriteTo(w); err != nil {
		slog.ErrorContext(r.Context(), "failed to write xlsx export", "error", err)
	}
}

func (h *handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := transfer.Schema()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build schema", "error", err)
		http.Error(w, "schema error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(schema)
}

func (h *handler) handleDataFile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, h.dataFile)
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.SortOptions = sortOptions
	var buf bytes.Buffer
	if err := templates.Page.Execute(&buf, data); err != nil {
		slog.ErrorContext(r.Context(), "page template execute error", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func redirectNotice(w http.ResponseWriter, r *http.Request, notice string) {
	http.Redirect(w, r, "/?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

func attachment(name string) string {
	return fmt.Sprintf(`attachment; filename=%q`, name)
}
