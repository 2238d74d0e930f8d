package httpadapter

import (
	"net/http"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

func (rt *Router) summary(w http.ResponseWriter, r *http.Request) {
	s, err := rt.svc.Stats.Summary(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	s, err := rt.svc.Stats.Stats(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (rt *Router) categories(w http.ResponseWriter, _ *http.Request) {
	if rt.svc.Taxonomy == nil {
		writeJSON(w, http.StatusOK, []domain.CategoryInfo{})
		return
	}
	writeJSON(w, http.StatusOK, rt.svc.Taxonomy.Categories())
}

func (rt *Router) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := rt.svc.Settings.Get(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (rt *Router) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if err := rt.readJSON(r, "SettingsUpdate", &patch); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	s, err := rt.svc.Settings.Update(r.Context(), patch)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (rt *Router) watcherStatus(w http.ResponseWriter, _ *http.Request) {
	rt.withWatcher(w, func() domain.WatcherStatus { return rt.svc.Watcher.Status() })
}

func (rt *Router) watcherStart(w http.ResponseWriter, _ *http.Request) {
	rt.withWatcher(w, func() domain.WatcherStatus { return rt.svc.Watcher.Start() })
}

func (rt *Router) watcherStop(w http.ResponseWriter, _ *http.Request) {
	rt.withWatcher(w, func() domain.WatcherStatus { return rt.svc.Watcher.Stop() })
}

func (rt *Router) watcherScan(w http.ResponseWriter, _ *http.Request) {
	rt.withWatcher(w, func() domain.WatcherStatus { return rt.svc.Watcher.ScanNow() })
}

func (rt *Router) withWatcher(w http.ResponseWriter, fn func() domain.WatcherStatus) {
	if rt.svc.Watcher == nil {
		writeError(w, http.StatusServiceUnavailable, "folder watcher is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, fn())
}
