package ingress

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts every API endpoint onto a fresh router. Middleware (request
// logging, CORS, recovery) is layered on by the caller, matching how the
// server entrypoint composes its stack.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", h.ListDevices)
			r.Post("/", h.CreateDevice)
			r.Delete("/{id}", h.DeleteDevice)
			r.Post("/{id}/values", h.SetDeviceValues)
		})

		r.Route("/scenes", func(r chi.Router) {
			r.Get("/", h.ListScenes)
			r.Post("/", h.CreateScene)
			r.Get("/{id}", h.GetScene)
			r.Delete("/{id}", h.DeleteScene)
			r.Post("/{id}/activate", h.ActivateScene)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Post("/", h.CreateGroup)
			r.Put("/{id}", h.UpdateGroup)
			r.Delete("/{id}", h.DeleteGroup)
			r.Post("/{id}/values", h.SetGroupValues)
		})

		r.Route("/effects", func(r chi.Router) {
			r.Get("/", h.ListEffects)
			r.Post("/", h.CreateEffect)
			r.Delete("/{id}", h.DeleteEffect)
			r.Post("/{id}/start", h.StartEffect)
			r.Post("/{id}/stop", h.StopEffect)
		})

		r.Route("/sequences", func(r chi.Router) {
			r.Get("/", h.ListSequences)
			r.Post("/", h.CreateSequence)
			r.Put("/{id}", h.UpdateSequence)
			r.Delete("/{id}", h.DeleteSequence)
			r.Post("/{id}/play", h.PlaySequence)
			r.Post("/{id}/stop", h.StopSequence)
		})

		r.Route("/companion", func(r chi.Router) {
			r.Get("/actions", h.CompanionActions)
			r.Post("/trigger", h.CompanionTrigger)
		})
	})

	r.Get("/ws", h.ServeWS)

	return r
}
