package www

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"orchconsole/api"
)

func (h *Handlers) handleBootstrapPage(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(w, r, "bootstrap")
	data["NodeID"] = r.URL.Query().Get("node_id")
	h.render(w, "bootstrap.html", data)
}

// handleBootstrapCreate mints a token and renders it in this response only.
func (h *Handlers) handleBootstrapCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	nodeID := strings.TrimSpace(r.PostFormValue("node_id"))
	expiresRaw := strings.TrimSpace(r.PostFormValue("expires_in"))
	accessToken := strings.TrimSpace(r.PostFormValue("access_token"))

	data := h.pageData(w, r, "bootstrap")
	data["NodeID"] = nodeID
	data["ExpiresIn"] = expiresRaw

	fail := func(msg string) {
		data["Error"] = msg
		w.WriteHeader(http.StatusUnprocessableEntity)
		h.render(w, "bootstrap.html", data)
	}

	if nodeID == "" {
		fail("Node ID is required")
		return
	}
	var expiresIn *int
	if expiresRaw != "" {
		n, err := strconv.Atoi(expiresRaw)
		if err != nil || n <= 0 {
			fail("Expires In must be a positive number of seconds")
			return
		}
		expiresIn = &n
	}

	tok, err := h.engine.CreateBootstrapToken(r.Context(), h.getUsername(r), nodeID, expiresIn, accessToken)
	if err != nil {
		if !errors.Is(err, api.ErrNodeIDRequired) {
			h.log.Errorf("bootstrap: create token for %s: %v", nodeID, err)
		}
		fail("Failed to create bootstrap token: " + errorMessage(err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	data["Token"] = tok
	h.render(w, "bootstrap.html", data)
}
