package www

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"orchconsole/api"
)

func (h *Handlers) handlePlugins(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(w, r, "plugins")
	data["DriverTypes"] = api.DriverTypes

	env, err := h.engine.Plugins(r.Context())
	if err != nil {
		h.log.Warnf("plugins: list: %v", err)
		data["Error"] = errorMessage(err)
	} else if env.Data != nil {
		data["Plugins"] = env.Data.Plugins
	}

	// ?edit=<id> opens the edit form with the plugin's current values.
	if id := r.URL.Query().Get("edit"); id != "" {
		if p, err := h.engine.Plugin(r.Context(), id); err != nil {
			h.log.Warnf("plugins: get %s: %v", id, err)
			data["Error"] = errorMessage(err)
		} else if p.Data != nil {
			data["Editing"] = p.Data.Plugin
		}
	}
	h.render(w, "plugins.html", data)
}

// pluginFields reads the shared plugin form. A blank published_at means now.
func pluginFields(r *http.Request) api.UpdatePluginRequest {
	publishedAt := strings.TrimSpace(r.FormValue("published_at"))
	if publishedAt == "" {
		publishedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return api.UpdatePluginRequest{
		PluginName:    strings.TrimSpace(r.FormValue("plugin_name")),
		PublisherName: strings.TrimSpace(r.FormValue("publisher_name")),
		PublishedAt:   publishedAt,
		ArtifactURL:   strings.TrimSpace(r.FormValue("artifact_url")),
		Version:       strings.TrimSpace(r.FormValue("version")),
		Description:   r.FormValue("description"),
		DriverType:    api.DriverType(r.FormValue("driver_type")),
	}
}

func (h *Handlers) handlePluginPublish(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := pluginFields(r)
	req := &api.CreatePluginRequest{
		PluginID:      strings.TrimSpace(r.FormValue("plugin_id")),
		PluginName:    f.PluginName,
		PublisherName: f.PublisherName,
		PublishedAt:   f.PublishedAt,
		ArtifactURL:   f.ArtifactURL,
		Version:       f.Version,
		Description:   f.Description,
		DriverType:    f.DriverType,
	}
	if err := req.Validate(); err != nil {
		h.addFlash(w, r, flashError, "Cannot publish plugin: "+err.Error())
		http.Redirect(w, r, "/plugins", http.StatusSeeOther)
		return
	}
	if err := h.engine.PublishPlugin(r.Context(), h.getUsername(r), req); err != nil {
		h.log.Errorf("plugins: publish %s: %v", req.PluginID, err)
		h.addFlash(w, r, flashError, "Failed to publish plugin: "+errorMessage(err))
	} else {
		h.addFlash(w, r, flashSuccess, "Plugin "+req.PluginID+" published")
	}
	http.Redirect(w, r, "/plugins", http.StatusSeeOther)
}

func (h *Handlers) handlePluginUpdate(w http.ResponseWriter, r *http.Request) {
	pluginID := chi.URLParam(r, "pluginID")
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := pluginFields(r)
	if err := req.Validate(); err != nil {
		h.addFlash(w, r, flashError, "Cannot update plugin: "+err.Error())
		http.Redirect(w, r, "/plugins?edit="+url.QueryEscape(pluginID), http.StatusSeeOther)
		return
	}
	if err := h.engine.UpdatePlugin(r.Context(), h.getUsername(r), pluginID, &req); err != nil {
		h.log.Errorf("plugins: update %s: %v", pluginID, err)
		h.addFlash(w, r, flashError, "Failed to update plugin: "+errorMessage(err))
		http.Redirect(w, r, "/plugins?edit="+url.QueryEscape(pluginID), http.StatusSeeOther)
		return
	}
	h.addFlash(w, r, flashSuccess, "Plugin "+pluginID+" updated")
	http.Redirect(w, r, "/plugins", http.StatusSeeOther)
}

func (h *Handlers) handlePluginDelete(w http.ResponseWriter, r *http.Request) {
	pluginID := chi.URLParam(r, "pluginID")
	if err := h.engine.DeletePlugin(r.Context(), h.getUsername(r), pluginID); err != nil {
		h.log.Errorf("plugins: delete %s: %v", pluginID, err)
		h.addFlash(w, r, flashError, "Failed to delete plugin: "+errorMessage(err))
	} else {
		h.addFlash(w, r, flashSuccess, "Plugin "+pluginID+" deleted")
	}
	http.Redirect(w, r, "/plugins", http.StatusSeeOther)
}
