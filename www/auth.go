package www

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"orchconsole/config"
	"orchconsole/logger"
)

const sessionName = "orchconsole-session"

// Flash keys.
const (
	flashError   = "error"
	flashSuccess = "success"
)

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "orchconsole-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // the console is usually reached over plain HTTP on an internal network
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// loadOperators indexes the configured operator hashes by username. With no
// operators configured a single admin/admin login is created.
func loadOperators(ops []config.Operator, log *logger.Logger) map[string]string {
	out := make(map[string]string, len(ops))
	for _, op := range ops {
		name := strings.TrimSpace(op.Username)
		if name == "" || op.PasswordHash == "" {
			log.Warnf("auth: skipping operator %q with no username or password hash", op.Username)
			continue
		}
		out[name] = op.PasswordHash
	}
	if len(out) > 0 {
		return out
	}
	hash, err := hashPassword("admin")
	if err != nil {
		log.Errorf("auth: hash default password: %v", err)
		return out
	}
	log.Warnf("auth: no operators configured, using default admin login")
	out["admin"] = hash
	return out
}

func (h *Handlers) isAuthenticated(r *http.Request) bool {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	auth, ok := session.Values["authenticated"].(bool)
	return ok && auth
}

func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAuthenticated(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) getUsername(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	username, _ := session.Values["username"].(string)
	return username
}

// addFlash stores a one-shot message shown on the next rendered page.
func (h *Handlers) addFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	session, _ := h.sessions.Get(r, sessionName)
	session.AddFlash(msg, kind)
	if err := session.Save(r, w); err != nil {
		h.log.Warnf("auth: session save error: %v", err)
	}
}

// pageData starts the template data for a page and consumes pending flashes.
// It must run before anything is written to w.
func (h *Handlers) pageData(w http.ResponseWriter, r *http.Request, page string) map[string]any {
	data := map[string]any{
		"Page":          page,
		"Authenticated": false,
	}
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return data
	}
	auth, _ := session.Values["authenticated"].(bool)
	username, _ := session.Values["username"].(string)
	data["Authenticated"] = auth
	data["Username"] = username

	errs := flashStrings(session.Flashes(flashError))
	oks := flashStrings(session.Flashes(flashSuccess))
	if len(errs)+len(oks) > 0 {
		if err := session.Save(r, w); err != nil {
			h.log.Warnf("auth: session save error: %v", err)
		}
	}
	data["FlashErrors"] = errs
	data["FlashSuccess"] = oks
	return data
}

func flashStrings(flashes []any) []string {
	out := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (h *Handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", h.pageData(w, r, "login"))
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	hash, ok := h.operators[username]
	if !ok || !checkPassword(hash, password) {
		h.log.Warnf("auth: failed login for %q", username)
		data := h.pageData(w, r, "login")
		data["Error"] = "Invalid username or password"
		w.WriteHeader(http.StatusUnauthorized)
		h.render(w, "login.html", data)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = username
	if err := session.Save(r, w); err != nil {
		h.log.Warnf("auth: session save error: %v", err)
	}
	h.log.Infof("auth: %s logged in", username)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	session.Values["username"] = ""
	session.Save(r, w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
