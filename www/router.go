package www

import (
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"orchconsole/engine"
	"orchconsole/logger"
)

type Handlers struct {
	engine    *engine.Engine
	sessions  *sessions.CookieStore
	tmpls     map[string]*template.Template
	log       *logger.Logger
	operators map[string]string
	pageSize  int
}

func NewRouter(eng *engine.Engine) http.Handler {
	cfg := eng.AppConfig()
	cfg.RLock()
	secret := cfg.Web.SessionSecret
	pageSize := cfg.Web.PageSize
	operators := loadOperators(cfg.Web.Operators, eng.Logger())
	cfg.RUnlock()

	// Parse layout + partials as a base template set. Each page is cloned separately
	// to avoid the "last define wins" problem with {{define "content"}}.
	base := template.New("").Funcs(templateFuncs(eng.StatusDeriver()))
	base = template.Must(base.ParseFS(templateFS, "templates/layout.html", "templates/partials/*.html"))

	pages := []string{
		"templates/tasks.html",
		"templates/task_detail.html",
		"templates/task_new.html",
		"templates/agents.html",
		"templates/plugins.html",
		"templates/bootstrap.html",
		"templates/login.html",
		"templates/config.html",
	}
	tmpls := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		clone := template.Must(base.Clone())
		clone = template.Must(clone.ParseFS(templateFS, p))
		name := p[len("templates/"):]
		tmpls[name] = clone
	}

	h := &Handlers{
		engine:    eng,
		sessions:  newSessionStore(secret),
		tmpls:     tmpls,
		log:       eng.Logger(),
		operators: operators,
		pageSize:  pageSize,
	}
	if h.pageSize <= 0 {
		h.pageSize = 10
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Public routes
	r.Get("/", h.handleTasks)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)
	r.Get("/tasks", h.handleTasks)
	r.Get("/tasks/{taskID}", h.handleTaskDetail)
	r.Get("/agents", h.handleAgents)
	r.Get("/plugins", h.handlePlugins)
	r.Get("/bootstrap-tokens", h.handleBootstrapPage)

	// API routes (no auth required for read)
	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", h.apiListTasks)
		r.Get("/tasks/{taskID}", h.apiGetTask)
		r.Get("/tasks/{taskID}/logs", h.apiTaskLogs)
		r.Get("/tasks/{taskID}/audit", h.apiTaskAudit)
		r.Get("/agents", h.apiListAgents)
		r.Get("/agents/{nodeID}", h.apiGetAgent)
		r.Get("/plugins", h.apiListPlugins)
		r.Get("/plugins/{pluginID}", h.apiGetPlugin)
		r.Get("/health", h.apiHealthCheck)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/tasks/new", h.handleTaskNew)
		r.Post("/tasks/new", h.handleTaskBuilder)
		r.Post("/tasks/{taskID}/delete", h.handleTaskDelete)
		r.Post("/agents/{agentID}/delete", h.handleAgentDelete)
		r.Post("/plugins/publish", h.handlePluginPublish)
		r.Post("/plugins/{pluginID}/update", h.handlePluginUpdate)
		r.Post("/plugins/{pluginID}/delete", h.handlePluginDelete)
		r.Post("/bootstrap-tokens", h.handleBootstrapCreate)
		r.Get("/config", h.handleConfig)
		r.Post("/config/save", h.handleConfigSave)
	})

	return r
}

func (h *Handlers) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := h.tmpls[name]
	if !ok {
		h.log.Errorf("render: template %q not found", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		h.log.Errorf("render %s: %v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// logRequests logs one line per request at debug level.
func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debugw("www: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
