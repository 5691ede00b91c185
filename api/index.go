package api

import (
	"context"
	"net/http"
	"sync"

	"clan-manager/app"
	"clan-manager/internal/httpx"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler is the serverless entry point. The runtime is built on the first
// request and reused while the instance stays warm.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		apiRuntime, initErr = app.Build(context.Background(), app.Options{RunMigrations: false})
	})

	if initErr != nil {
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "application bootstrap failed"})
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
