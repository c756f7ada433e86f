package httpapi

import (
	"bytes"
	"crypto/subtle"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var embeddedStatic embed.FS

var staticFS, _ = fs.Sub(embeddedStatic, "static")

const adminCookie = "admin_auth"

var pages = map[string]*template.Template{
	"index.html": parsePage("index.html"),
	"admin.html": parsePage("admin.html"),
	"login.html": parsePage("login.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

// pageData is shared by every page template.
type pageData struct {
	Lang string
	T    map[string]string

	WatchPath   string
	PrinterName string

	Copies     int
	Stats      statsResponse
	RecentJobs []jobResponse

	Error string
}

func (h *Handler) newPageData(lang string) pageData {
	return pageData{Lang: lang, T: translations[lang]}
}

// render executes the page into a buffer first so a template error still
// produces a clean 500.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, name, data); err != nil {
		h.Logger.Error("render page", "page", name, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	setLangCookie(w, data.Lang)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Index renders the drop zone page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	data := h.newPageData(pickLang(r))
	data.WatchPath = h.WatchPath
	data.PrinterName = h.PrinterName
	h.render(w, http.StatusOK, "index.html", data)
}

func (h *Handler) adminConfigured(w http.ResponseWriter) bool {
	if h.AdminPassword == "" {
		writeError(w, http.StatusInternalServerError, "Admin password not configured.")
		return false
	}
	return true
}

func (h *Handler) authorized(r *http.Request) bool {
	c, err := r.Cookie(adminCookie)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(h.AdminPassword)) == 1
}

// AdminPanel shows the copies setting, counters and the latest jobs.
func (h *Handler) AdminPanel(w http.ResponseWriter, r *http.Request) {
	if !h.adminConfigured(w) {
		return
	}
	lang := pickLang(r)
	if !h.authorized(r) {
		http.Redirect(w, r, "/admin/login?lang="+url.QueryEscape(lang), http.StatusFound)
		return
	}

	ctx := r.Context()
	data := h.newPageData(lang)
	copies, err := h.Store.Copies(ctx)
	if err != nil {
		h.Logger.Error("read settings", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	data.Copies = copies

	recent, err := h.Store.ListRecentJobs(ctx, adminListLimit)
	if err != nil {
		h.Logger.Error("list jobs", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	data.RecentJobs = serializeJobs(recent)

	if data.Stats, err = h.stats(r); err != nil {
		h.Logger.Error("count jobs", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.render(w, http.StatusOK, "admin.html", data)
}

// AdminLoginForm renders the password form.
func (h *Handler) AdminLoginForm(w http.ResponseWriter, r *http.Request) {
	if !h.adminConfigured(w) {
		return
	}
	h.render(w, http.StatusOK, "login.html", h.newPageData(pickLang(r)))
}

// AdminLogin checks the shared password and sets the admin cookie.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if !h.adminConfigured(w) {
		return
	}
	lang := pickLang(r)
	password := r.PostFormValue("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(h.AdminPassword)) != 1 {
		data := h.newPageData(lang)
		data.Error = data.T["login_error"]
		h.render(w, http.StatusUnauthorized, "login.html", data)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    h.AdminPassword,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setLangCookie(w, lang)
	http.Redirect(w, r, "/admin", http.StatusFound)
}
