package httpapi

import (
	"net/http"

	"golang.org/x/text/language"
)

const defaultLang = "en"

// translations holds the UI strings per language code.
var translations = map[string]map[string]string{
	"en": {
		"title":           "Drop2Print",
		"nav_user":        "User panel",
		"nav_admin":       "Admin",
		"drop_title":      "Drop PDF files here",
		"drop_sub":        "Files will be uploaded and sent to print automatically.",
		"drop_hint":       "Drop PDF files here or click to choose.",
		"recent_jobs":     "Recent jobs",
		"uploading":       "Uploading {filename}...",
		"status":          "Job #{id} ({filename}) status: {status}",
		"jobs_empty":      "No jobs.",
		"loading":         "Loading...",
		"settings":        "Settings",
		"copies_label":    "Number of copies per job",
		"save":            "Save",
		"save_success":    "Saved.",
		"save_error":      "Save error",
		"stats":           "Statistics",
		"total_jobs":      "Total jobs",
		"printed":         "Printed",
		"failed":          "Failed",
		"watch_info":      "Watched folder",
		"printer_info":    "Printer",
		"default_printer": "system default",
		"login_title":     "Admin login",
		"password":        "Password",
		"login":           "Log in",
		"login_error":     "Invalid password",
		"pdf_only":        "PDF only.",
	},
	"pl": {
		"title":           "Drop2Print",
		"nav_user":        "Panel użytkownika",
		"nav_admin":       "Administracja",
		"drop_title":      "Przeciągnij pliki PDF",
		"drop_sub":        "Pliki zostaną automatycznie wysłane do druku.",
		"drop_hint":       "Upuść pliki PDF tutaj lub kliknij, aby wybrać.",
		"recent_jobs":     "Ostatnie zadania",
		"uploading":       "Wysyłanie {filename}...",
		"status":          "Zadanie #{id} ({filename}) status: {status}",
		"jobs_empty":      "Brak zadań.",
		"loading":         "Ładowanie...",
		"settings":        "Ustawienia",
		"copies_label":    "Liczba kopii na zadanie",
		"save":            "Zapisz",
		"save_success":    "Zapisano.",
		"save_error":      "Błąd zapisu",
		"stats":           "Statystyki",
		"total_jobs":      "Zadań łącznie",
		"printed":         "Wydrukowane",
		"failed":          "Nieudane",
		"watch_info":      "Obserwowany folder",
		"printer_info":    "Drukarka",
		"default_printer": "domyślna systemowa",
		"login_title":     "Logowanie administratora",
		"password":        "Hasło",
		"login":           "Zaloguj",
		"login_error":     "Nieprawidłowe hasło",
		"pdf_only":        "Tylko pliki PDF.",
	},
}

// langCodes lists the supported languages in matcher order; the first is the
// fallback.
var langCodes = []string{"en", "pl"}

var langMatcher = language.NewMatcher([]language.Tag{language.English, language.Polish})

// pickLang chooses the UI language: ?lang, then the lang cookie, then
// Accept-Language.
func pickLang(r *http.Request) string {
	if l := r.URL.Query().Get("lang"); supportedLang(l) {
		return l
	}
	if c, err := r.Cookie("lang"); err == nil && supportedLang(c.Value) {
		return c.Value
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return defaultLang
	}
	_, idx, conf := langMatcher.Match(tags...)
	if conf == language.No {
		return defaultLang
	}
	return langCodes[idx]
}

func supportedLang(l string) bool {
	_, ok := translations[l]
	return ok
}

func setLangCookie(w http.ResponseWriter, lang string) {
	http.SetCookie(w, &http.Cookie{Name: "lang", Value: lang, Path: "/", SameSite: http.SameSiteLaxMode})
}
