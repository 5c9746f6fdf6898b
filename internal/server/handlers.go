package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formrunner/pkg/definition"
	"github.com/goliatone/go-formrunner/pkg/form"
	"github.com/goliatone/go-formrunner/pkg/page"
	"github.com/goliatone/go-formrunner/pkg/session"
	"github.com/goliatone/go-formrunner/pkg/summary"
	"github.com/goliatone/go-formrunner/pkg/transport"
)

// publishRequest is the body of POST /publish.
type publishRequest struct {
	ID            string          `json:"id"`
	Configuration json.RawMessage `json:"configuration"`
}

// publishedForm is the wire shape of a published form.
type publishedForm struct {
	ID     string          `json:"id"`
	Values json.RawMessage `json:"values"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.PreviewMode {
		http.Error(w, "publishing is disabled", http.StatusForbidden)
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid publish payload", http.StatusBadRequest)
		return
	}
	if req.ID == "" || len(req.Configuration) == 0 {
		http.Error(w, "id and configuration are required", http.StatusBadRequest)
		return
	}

	def, err := definition.Parse(req.Configuration)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	model, err := form.New(def)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := s.registry.Publish(req.ID, model)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("form published",
		zap.String("form", entry.ID),
		zap.Int("version", entry.Version))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublishedList(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.PreviewMode {
		http.Error(w, "preview mode is disabled", http.StatusForbidden)
		return
	}

	entries := s.registry.List()
	out := make([]publishedForm, 0, len(entries))
	for _, entry := range entries {
		values, err := json.Marshal(entry.Model.Definition())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, publishedForm{ID: entry.ID, Values: values})
	}
	writeJSON(w, out)
}

func (s *Server) handlePublished(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.PreviewMode {
		http.Error(w, "preview mode is disabled", http.StatusForbidden)
		return
	}

	id := chi.URLParam(r, "formID")
	entry, ok := s.registry.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	values, err := json.Marshal(entry.Model.Definition())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, publishedForm{ID: entry.ID, Values: values})
}

func (s *Server) handleFormRoot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "formID")
	entry, ok := s.registry.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	visit := uuid.NewString()
	start := entry.Model.Definition().StartPage
	http.Redirect(w, r, "/"+id+start+"?visit="+visit, http.StatusFound)
}

func (s *Server) handlePageGet(w http.ResponseWriter, r *http.Request) {
	entry, ctrl, key, ok := s.resolve(w, r)
	if !ok {
		return
	}
	model := entry.Model

	state, err := s.store.GetState(r.Context(), key)
	if err != nil {
		s.serverError(w, err)
		return
	}

	switch ctrl.Kind {
	case page.KindSummary:
		s.renderSummary(w, r, entry, key, state)
		return
	case page.KindStatus:
		s.renderStatus(w, r, entry, state)
		return
	}

	iteration := s.iteration(r, ctrl, state)

	trail := page.AppendProgress(state, ctrl.Def.Path+"?visit="+key.VisitID)
	if _, err := s.store.MergeState(r.Context(), key, map[string]any{page.ProgressKey: trail}); err != nil {
		s.serverError(w, err)
		return
	}

	payload := ctrl.Prefill(state, iteration)
	vm := ctrl.ViewModel(model.ContextState(state), payload, nil)
	s.renderPage(w, entry, key, vm, http.StatusOK)
}

func (s *Server) handlePagePost(w http.ResponseWriter, r *http.Request) {
	entry, ctrl, key, ok := s.resolve(w, r)
	if !ok {
		return
	}
	model := entry.Model

	state, err := s.store.GetState(r.Context(), key)
	if err != nil {
		s.serverError(w, err)
		return
	}

	if ctrl.Kind == page.KindSummary {
		s.handleSummaryPost(w, r, entry, key, state)
		return
	}

	if remove := r.URL.Query().Get("remove"); remove != "" && ctrl.Kind == page.KindRepeating {
		s.handleRemove(w, r, entry, ctrl, key, state, remove)
		return
	}

	payload, err := formPayload(r)
	if err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}

	if ctrl.Kind == page.KindUpload {
		payload, err = s.uploads.Normalise(payload, ctrl.Components)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	iteration := s.iteration(r, ctrl, state)

	values, fieldErrs := ctrl.Validate(payload)
	if len(fieldErrs) > 0 {
		// Re-render with the submitted values preserved, valid or not.
		vm := ctrl.ViewModel(model.ContextState(state), payload, fieldErrs)
		s.renderPage(w, entry, key, vm, http.StatusOK)
		return
	}

	update, err := ctrl.StateUpdate(state, values, iteration)
	if err != nil {
		s.serverError(w, err)
		return
	}
	merged, err := s.store.MergeState(r.Context(), key, update)
	if err != nil {
		s.serverError(w, err)
		return
	}

	if ctrl.Kind == page.KindUpload && !s.uploads.Settled(ctrl.ScopedState(merged, iteration), ctrl.Components) {
		// Files still processing; stay on the page.
		s.redirectTo(w, r, entry.ID, ctrl.Def.Path, key.VisitID)
		return
	}

	s.redirectNext(w, r, entry, ctrl, key, merged)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request, entry *form.Entry, ctrl *page.Controller, key session.Key, state map[string]any, remove string) {
	idx, err := strconv.Atoi(remove)
	if err != nil {
		http.Error(w, "invalid iteration", http.StatusBadRequest)
		return
	}
	update, err := ctrl.RemoveAt(state, idx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.store.MergeState(r.Context(), key, update); err != nil {
		s.serverError(w, err)
		return
	}
	s.redirectTo(w, r, entry.ID, ctrl.Def.Path, key.VisitID)
}

func (s *Server) handleSummaryPost(w http.ResponseWriter, r *http.Request, entry *form.Entry, key session.Key, state map[string]any) {
	model := entry.Model

	vm, err := summary.Build(model, state)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if vm.HasErrors() {
		s.redirectTo(w, r, entry.ID, s.summaryPath(model), key.VisitID)
		return
	}

	declaration := r.PostFormValue("declaration") == "true"
	if model.Definition().Declaration != "" && !declaration {
		s.redirectTo(w, r, entry.ID, s.summaryPath(model), key.VisitID)
		return
	}

	dispatch, err := summary.Outputs(model, state, declaration)
	if err != nil {
		s.serverError(w, err)
		return
	}

	reference := s.deliver(r, dispatch)

	confirmation := map[string]any{
		"confirmed": true,
		"reference": reference,
	}
	if _, err := s.store.MergeState(r.Context(), key, map[string]any{"confirmation": confirmation}); err != nil {
		s.serverError(w, err)
		return
	}
	s.redirectTo(w, r, entry.ID, s.statusPath(model), key.VisitID)
}

// deliver runs the dispatch plan in order: fees, webhooks, then
// notifications and emails. The first webhook reference becomes the user's
// reference number.
func (s *Server) deliver(r *http.Request, dispatch *summary.Dispatch) string {
	if dispatch.Skipped {
		return ""
	}
	ctx := r.Context()

	if dispatch.Fees != nil {
		dispatch.Fees.PaymentReference = uuid.NewString()
		s.logger.Info("fees due",
			zap.Int("total", dispatch.Fees.Total),
			zap.String("paymentReference", dispatch.Fees.PaymentReference))
	}

	reference := ""
	for _, hook := range dispatch.Webhooks {
		var ref string
		var err error
		if s.queue != nil {
			ref, err = s.queue.Enqueue(ctx, hook.Payload, hook.URL, hook.AllowRetry)
		} else {
			ref, err = s.webhook.Send(ctx, hook.URL, hook.Payload, http.MethodPost)
		}
		if err != nil {
			s.logger.Error("webhook dispatch failed", zap.String("url", hook.URL), zap.Error(err))
			ref = transport.UnknownReference
		}
		if reference == "" {
			reference = ref
		}
	}

	s.sendNotifications(ctx, dispatch.Notifications)
	for _, email := range dispatch.Emails {
		s.logger.Info("email output assembled",
			zap.String("to", email.To),
			zap.String("subject", email.Subject))
	}
	return reference
}

func (s *Server) renderSummary(w http.ResponseWriter, r *http.Request, entry *form.Entry, key session.Key, state map[string]any) {
	vm, err := summary.Build(entry.Model, state)
	if err != nil {
		s.serverError(w, err)
		return
	}
	var buf bytes.Buffer
	err = s.engine.Render(&buf, "summary", map[string]any{
		"summary":  vm,
		"basePath": "/" + entry.ID,
		"visit":    key.VisitID,
		"action":   "/" + entry.ID + s.summaryPath(entry.Model) + "?visit=" + key.VisitID,
	})
	if err != nil {
		s.serverError(w, err)
		return
	}
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, entry *form.Entry, state map[string]any) {
	confirmation, ok := state["confirmation"].(map[string]any)
	if !ok {
		// Nothing submitted on this visit; bounce to the start.
		http.Redirect(w, r, "/"+entry.ID, http.StatusFound)
		return
	}

	data := map[string]any{
		"title": "Application complete",
	}
	if ref, ok := confirmation["reference"].(string); ok && ref != "" && ref != transport.UnknownReference {
		data["reference"] = ref
	}
	if sp := entry.Model.Definition().SpecialPages; sp != nil && sp.ConfirmationPage != nil {
		custom := sp.ConfirmationPage.CustomText
		if custom.Title != "" {
			data["title"] = custom.Title
		}
		if custom.NextSteps != "" {
			data["nextSteps"] = custom.NextSteps
		}
		if custom.PaymentSkipped != "" {
			data["paymentSkipped"] = custom.PaymentSkipped
		}
	}

	var buf bytes.Buffer
	if err := s.engine.Render(&buf, "confirmation", data); err != nil {
		s.serverError(w, err)
		return
	}
	_, _ = buf.WriteTo(w)
}

// renderPage buffers the template before writing so a render failure can
// still produce a clean 500 instead of a partial body.
func (s *Server) renderPage(w http.ResponseWriter, entry *form.Entry, key session.Key, vm page.ViewModel, status int) {
	var buf bytes.Buffer
	err := s.engine.Render(&buf, "page", map[string]any{
		"page":   vm,
		"action": "/" + entry.ID + vm.Path + "?visit=" + key.VisitID,
	})
	if err != nil {
		s.serverError(w, err)
		return
	}
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirectNext follows the page's outgoing edge, falling back to the
// summary page when the branch is terminal.
func (s *Server) redirectNext(w http.ResponseWriter, r *http.Request, entry *form.Entry, ctrl *page.Controller, key session.Key, state map[string]any) {
	model := entry.Model
	nextPath, ok := ctrl.Next(model.ContextState(state))
	if !ok {
		nextPath = s.summaryPath(model)
	}
	s.redirectTo(w, r, entry.ID, nextPath, key.VisitID)
}

func (s *Server) redirectTo(w http.ResponseWriter, r *http.Request, formID, path, visit string) {
	http.Redirect(w, r, "/"+formID+path+"?visit="+visit, http.StatusFound)
}

// summaryPath finds the form's summary page, defaulting to /summary.
func (s *Server) summaryPath(model *form.Model) string {
	for _, ctrl := range model.Pages() {
		if ctrl.Kind == page.KindSummary {
			return ctrl.Def.Path
		}
	}
	return "/summary"
}

// statusPath finds the form's status page, defaulting to /status.
func (s *Server) statusPath(model *form.Model) string {
	for _, ctrl := range model.Pages() {
		if ctrl.Kind == page.KindStatus {
			return ctrl.Def.Path
		}
	}
	return "/status"
}

// resolve maps the request onto a published form, a page controller, and
// the visit's session key.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (*form.Entry, *page.Controller, session.Key, bool) {
	id := chi.URLParam(r, "formID")
	entry, ok := s.registry.Get(id)
	if !ok {
		http.NotFound(w, r)
		return nil, nil, session.Key{}, false
	}

	path := "/" + chi.URLParam(r, "*")
	ctrl, ok := entry.Model.PageByPath(path)
	if !ok {
		if path == "/summary" || path == "/status" {
			ctrl = s.builtinController(entry.Model, path)
		}
		if ctrl == nil {
			http.NotFound(w, r)
			return nil, nil, session.Key{}, false
		}
	}

	key := session.Key{
		SessionID: s.sessionID(w, r),
		FormID:    id,
		VisitID:   s.visitID(r),
	}
	return entry, ctrl, key, true
}

// builtinController synthesizes the summary and status pages for forms that
// do not declare them.
func (s *Server) builtinController(model *form.Model, path string) *page.Controller {
	controller := "summary"
	if path == "/status" {
		controller = "status"
	}
	ctrl, err := page.New(definition.Page{
		Path:       path,
		Title:      "Check your answers",
		Controller: controller,
	}, model.Conditions(), model)
	if err != nil {
		return nil
	}
	return ctrl
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(s.cfg.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
	})
	return id
}

func (s *Server) visitID(r *http.Request) string {
	if visit := r.URL.Query().Get("visit"); visit != "" {
		return visit
	}
	return "default"
}

// iteration resolves the 1-based iteration for repeating pages: the query
// parameter when present, otherwise the next fresh iteration.
func (s *Server) iteration(r *http.Request, ctrl *page.Controller, state map[string]any) int {
	if ctrl.Kind != page.KindRepeating {
		return 0
	}
	if raw := r.URL.Query().Get("iteration"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return ctrl.NextIndex(state)
}

// formPayload flattens the POST form into the component payload shape:
// repeated keys (checkboxes) become slices, everything else a string.
func formPayload(r *http.Request) (map[string]any, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	payload := make(map[string]any, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 1 {
			out := make([]any, len(values))
			for i, v := range values {
				out[i] = v
			}
			payload[key] = out
			continue
		}
		payload[key] = values[0]
	}
	return payload, nil
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	http.Error(w, "something went wrong", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
