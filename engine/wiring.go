package engine

import (
	"context"
	"time"

	"orchconsole/query"
)

func (e *Engine) wireEventHandlers() {
	// Mutations: log and forward to the activity stream
	e.Events.SubscribeTypes(func(evt Event) {
		e.log.Infof("engine: %s by %s: %+v", evt.Type, actorOrSystem(evt.Actor), evt.Payload)
		e.publishActivity(evt)
	},
		EventTaskCreated,
		EventTaskDeleted,
		EventAgentDeleted,
		EventPluginPublished,
		EventPluginUpdated,
		EventPluginDeleted,
		EventBootstrapTokenIssued,
	)

	// Backend reachability transitions
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		if evt.Type == EventBackendConnected {
			e.log.Infof("engine: %s backend connected (%s)", ev.Service, ev.Detail)
		} else {
			e.log.Warnf("engine: %s backend unreachable: %s", ev.Service, ev.Detail)
		}
	}, EventBackendConnected, EventBackendDisconnected)

	// Cache invalidations are re-emitted on the bus
	e.cache.Subscribe(nil, func(prefix query.Key) {
		e.Events.Emit(Event{Type: EventCacheInvalidated, Payload: CacheInvalidatedEvent{Prefix: prefix.String()}})
	})
	e.Events.SubscribeTypes(func(evt Event) {
		e.log.Debugf("engine: cache invalidated: %q", evt.Payload.(CacheInvalidatedEvent).Prefix)
	}, EventCacheInvalidated)
}

func (e *Engine) publishActivity(evt Event) {
	a := e.activityStream()
	if a == nil {
		return
	}
	msgType, ok := activityTypes[evt.Type]
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Errors are logged by the activity stream.
		a.Publish(ctx, msgType, actorOrSystem(evt.Actor), evt.Payload)
	}()
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
