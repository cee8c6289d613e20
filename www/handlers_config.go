package www

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func (h *Handlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(w, r, "config")
	cfg := h.engine.AppConfig()
	cfg.RLock()
	data["Backends"] = cfg.Backends
	data["CacheConfig"] = cfg.Cache
	data["Messaging"] = cfg.Messaging
	cfg.RUnlock()
	data["Saved"] = r.URL.Query().Get("saved")
	data["Health"] = h.engine.Health()
	h.render(w, "config.html", data)
}

func (h *Handlers) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	section := r.FormValue("section")
	cfg := h.engine.AppConfig()

	switch section {
	case "backends":
		orch, err := baseURL(r.FormValue("orch_base_url"))
		if err != nil {
			h.configError(w, r, "Orchestration URL: "+err.Error())
			return
		}
		authn, err := baseURL(r.FormValue("authn_base_url"))
		if err != nil {
			h.configError(w, r, "Authentication URL: "+err.Error())
			return
		}
		timeout, err := optionalDuration(r.FormValue("timeout"))
		if err != nil {
			h.configError(w, r, "Timeout: "+err.Error())
			return
		}
		cfg.Lock()
		cfg.Backends.OrchBaseURL = orch
		cfg.Backends.AuthnBaseURL = authn
		cfg.Backends.Timeout = timeout
		cfg.Unlock()
	case "cache":
		stale, err := optionalDuration(r.FormValue("stale_time"))
		if err != nil {
			h.configError(w, r, "Stale time: "+err.Error())
			return
		}
		cfg.Lock()
		cfg.Cache.StaleTime = stale
		cfg.Unlock()
	case "messaging":
		backend := r.FormValue("msg_backend")
		switch backend {
		case "", "kafka", "mqtt":
		default:
			h.configError(w, r, fmt.Sprintf("Unknown messaging backend %q", backend))
			return
		}
		cfg.Lock()
		cfg.Messaging.Backend = backend
		cfg.Messaging.ActivityTopic = strings.TrimSpace(r.FormValue("activity_topic"))
		cfg.Messaging.MQTT.Broker = strings.TrimSpace(r.FormValue("mqtt_broker"))
		if p, err := strconv.Atoi(r.FormValue("mqtt_port")); err == nil {
			cfg.Messaging.MQTT.Port = p
		}
		cfg.Messaging.MQTT.ClientID = strings.TrimSpace(r.FormValue("mqtt_client_id"))
		cfg.Messaging.Kafka.Brokers = splitTrim(r.FormValue("kafka_brokers"), ",")
		cfg.Unlock()
	default:
		http.Error(w, "unknown section", http.StatusBadRequest)
		return
	}

	if path := h.engine.ConfigPath(); path != "" {
		if err := cfg.Save(path); err != nil {
			h.log.Errorf("config: save error: %v", err)
			h.configError(w, r, "Failed to save: "+err.Error())
			return
		}
	}

	// Hot-reload the affected subsystem
	switch section {
	case "backends", "cache":
		h.engine.ReconfigureBackends()
	case "messaging":
		h.engine.ReconfigureMessaging()
	}

	h.log.Infof("config: %s section saved by %s", section, h.getUsername(r))
	http.Redirect(w, r, "/config?saved="+section, http.StatusSeeOther)
}

func (h *Handlers) configError(w http.ResponseWriter, r *http.Request, msg string) {
	h.addFlash(w, r, flashError, msg)
	http.Redirect(w, r, "/config", http.StatusSeeOther)
}

// baseURL checks that s is an absolute http(s) URL and drops a trailing slash.
func baseURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%q is not an http(s) URL", s)
	}
	return strings.TrimRight(s, "/"), nil
}

// optionalDuration parses a Go duration; blank means zero.
func optionalDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%q is not a duration like 30s or 5m", s)
	}
	return d, nil
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
