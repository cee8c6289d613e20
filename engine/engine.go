// Package engine ties the backend clients, the query cache, and the activity
// stream together. Every console page reads and writes through it.
package engine

import (
	"context"
	"sync"
	"time"

	"orchconsole/agentstatus"
	"orchconsole/api"
	"orchconsole/config"
	"orchconsole/logger"
	"orchconsole/messaging"
	"orchconsole/query"
)

const healthInterval = 30 * time.Second

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	Orch       *api.OrchClient
	Authn      *api.AuthnClient
	Cache      *query.Cache
	MsgClient  *messaging.Client
	// Activity overrides the stream built from MsgClient.
	Activity *messaging.Activity
	Logger   *logger.Logger
	Status   *agentstatus.Deriver
}

// BackendHealth is the last known reachability of one backend service.
type BackendHealth struct {
	Service   string    `json:"service"`
	BaseURL   string    `json:"base_url"`
	Connected bool      `json:"connected"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type Engine struct {
	cfg        *config.Config
	configPath string
	orch       *api.OrchClient
	authn      *api.AuthnClient
	cache      *query.Cache
	msgClient  *messaging.Client
	status     *agentstatus.Deriver
	log        *logger.Logger
	Events     *EventBus

	activityMu sync.RWMutex
	activity   *messaging.Activity

	healthMu sync.RWMutex
	health   map[string]*BackendHealth

	stopOnce sync.Once
	stopChan chan struct{}
}

func New(c Config) *Engine {
	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}
	cfg := c.AppConfig
	if cfg == nil {
		cfg = config.Defaults()
	}
	orch := c.Orch
	if orch == nil {
		orch = api.NewOrchClient(cfg.Backends.OrchBaseURL, api.WithTimeout(cfg.Backends.Timeout))
	}
	authn := c.Authn
	if authn == nil {
		authn = api.NewAuthnClient(cfg.Backends.AuthnBaseURL, api.WithTimeout(cfg.Backends.Timeout))
	}
	cache := c.Cache
	if cache == nil {
		cache = query.New(query.Config{
			StaleTime:  cfg.Cache.StaleTime,
			RetryDelay: cfg.Cache.RetryDelay,
			Logger:     log,
		})
	}
	status := c.Status
	if status == nil {
		status = agentstatus.Default()
	}

	e := &Engine{
		cfg:        cfg,
		configPath: c.ConfigPath,
		orch:       orch,
		authn:      authn,
		cache:      cache,
		msgClient:  c.MsgClient,
		status:     status,
		log:        log,
		Events:     NewEventBus(),
		health:     make(map[string]*BackendHealth),
		stopChan:   make(chan struct{}),
	}
	if c.Activity != nil {
		e.activity = c.Activity
	} else if c.MsgClient != nil && c.MsgClient.Enabled() {
		e.activity = messaging.NewActivity(c.MsgClient, cfg.Messaging.ActivityTopic, log)
	}
	e.wireEventHandlers()
	return e
}

// Start runs the first health check and starts the periodic one.
func (e *Engine) Start() {
	e.checkConnectionStatus()
	go e.connectionHealthLoop()
	e.log.Infof("engine: started (orch=%s authn=%s)", e.orch.BaseURL(), e.authn.BaseURL())
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.log.Infof("engine: stopped")
}

// Accessors
func (e *Engine) AppConfig() *config.Config           { return e.cfg }
func (e *Engine) ConfigPath() string                  { return e.configPath }
func (e *Engine) Orch() *api.OrchClient               { return e.orch }
func (e *Engine) Authn() *api.AuthnClient             { return e.authn }
func (e *Engine) Cache() *query.Cache                 { return e.cache }
func (e *Engine) StatusDeriver() *agentstatus.Deriver { return e.status }
func (e *Engine) Logger() *logger.Logger              { return e.log }

// Health returns a snapshot of both backends' last known state.
func (e *Engine) Health() []BackendHealth {
	e.healthMu.RLock()
	defer e.healthMu.RUnlock()
	out := make([]BackendHealth, 0, 2)
	for _, name := range []string{e.orch.Name(), e.authn.Name()} {
		if h, ok := e.health[name]; ok {
			out = append(out, *h)
		} else {
			out = append(out, BackendHealth{Service: name})
		}
	}
	return out
}

func (e *Engine) checkConnectionStatus() {
	for _, c := range []*api.Client{e.orch.Client, e.authn.Client} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.Ping(ctx)
		cancel()
		e.recordHealth(c, err)
	}
}

func (e *Engine) recordHealth(c *api.Client, err error) {
	e.healthMu.Lock()
	h, seen := e.health[c.Name()]
	if !seen {
		h = &BackendHealth{Service: c.Name()}
		e.health[c.Name()] = h
	}
	was := h.Connected
	h.BaseURL = c.BaseURL()
	h.CheckedAt = time.Now()
	h.Connected = err == nil
	h.Detail = ""
	if err != nil {
		h.Detail = err.Error()
	}
	e.healthMu.Unlock()

	switch {
	case err == nil && (!was || !seen):
		e.Events.Emit(Event{Type: EventBackendConnected, Payload: ConnectionEvent{Service: c.Name(), Detail: c.BaseURL()}})
	case err != nil && (was || !seen):
		e.Events.Emit(Event{Type: EventBackendDisconnected, Payload: ConnectionEvent{Service: c.Name(), Detail: err.Error()}})
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureBackends applies backend URL and timeout changes live and drops
// everything cached from the old endpoints.
func (e *Engine) ReconfigureBackends() {
	e.cfg.RLock()
	b := e.cfg.Backends
	stale := e.cfg.Cache.StaleTime
	e.cfg.RUnlock()

	e.orch.Reconfigure(b.OrchBaseURL, b.Timeout)
	e.authn.Reconfigure(b.AuthnBaseURL, b.Timeout)
	e.cache.SetStaleTime(stale)
	e.cache.Invalidate(context.Background())
	e.log.Infof("engine: backends reconfigured (orch=%s authn=%s)", b.OrchBaseURL, b.AuthnBaseURL)
	e.checkConnectionStatus()
}

// ReconfigureMessaging reconnects the activity stream with the current config.
func (e *Engine) ReconfigureMessaging() {
	if e.msgClient == nil {
		return
	}
	e.cfg.RLock()
	mc := e.cfg.Messaging
	e.cfg.RUnlock()

	if err := e.msgClient.Reconfigure(mc); err != nil {
		e.log.Warnf("engine: messaging reconfigure: %v", err)
	} else {
		e.log.Infof("engine: messaging reconfigured (%s)", mc.Backend)
	}
	var a *messaging.Activity
	if mc.Backend != "" {
		a = messaging.NewActivity(e.msgClient, mc.ActivityTopic, e.log)
	}
	e.activityMu.Lock()
	e.activity = a
	e.activityMu.Unlock()
}

func (e *Engine) activityStream() *messaging.Activity {
	e.activityMu.RLock()
	defer e.activityMu.RUnlock()
	return e.activity
}
