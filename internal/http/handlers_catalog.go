package http

import (
	"net/http"

	"sitepay/internal/core"
	"sitepay/internal/editor"
	"sitepay/internal/log"
	"sitepay/internal/state"
)

type vendorsView struct {
	pageData
	Vendors  []core.Vendor
	Types    []core.VendorType
	Name     string
	Type     core.VendorType
	Messages []string
}

type projectsView struct {
	pageData
	Projects []core.Project
	Name     string
	Messages []string
}

func (s *Server) renderVendors(w http.ResponseWriter, r *http.Request, status int, name string, vt core.VendorType, err error) {
	if vt == "" {
		vt = core.DefaultVendorType()
	}
	s.render(w, r, status, "vendors.html", vendorsView{
		pageData: s.page(r, "Vendors", "vendors"),
		Vendors:  s.domain.Vendors(),
		Types:    core.VendorTypes(),
		Name:     name,
		Type:     vt,
		Messages: userMessages(err),
	})
}

func (s *Server) renderProjects(w http.ResponseWriter, r *http.Request, status int, name string, err error) {
	s.render(w, r, status, "projects.html", projectsView{
		pageData: s.page(r, "Projects", "projects"),
		Projects: s.domain.Projects(),
		Name:     name,
		Messages: userMessages(err),
	})
}

func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request) {
	s.renderVendors(w, r, http.StatusOK, "", "", nil)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	s.renderProjects(w, r, http.StatusOK, "", nil)
}

func (s *Server) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	name := parser.Get("name")
	vt := core.VendorType(parser.Get("type"))
	if vt == "" {
		vt = core.DefaultVendorType()
	}

	id, err := s.domain.SaveVendor(r.Context(), core.Vendor{Name: name, Type: vt})
	if err != nil {
		s.failCatalog(w, r, parser, err, func(status int) { s.renderVendors(w, r, status, name, vt, err) })
		return
	}
	s.done(w, r, parser, http.StatusCreated, state.CollectionVendors, id, "/vendors", "vendor-saved")
}

func (s *Server) handleDeleteVendor(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	id := r.PathValue("id")
	if !Confirmed(parser) {
		err := editor.ErrNotConfirmed
		s.failCatalog(w, r, parser, err, func(status int) { s.renderVendors(w, r, status, "", "", err) })
		return
	}
	if err := s.domain.DeleteVendor(r.Context(), id); err != nil {
		s.failCatalog(w, r, parser, err, func(status int) { s.renderVendors(w, r, status, "", "", err) })
		return
	}
	s.done(w, r, parser, http.StatusOK, state.CollectionVendors, id, "/vendors", "vendor-deleted")
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	name := parser.Get("name")

	id, err := s.domain.SaveProject(r.Context(), core.Project{Name: name})
	if err != nil {
		s.failCatalog(w, r, parser, err, func(status int) { s.renderProjects(w, r, status, name, err) })
		return
	}
	s.done(w, r, parser, http.StatusCreated, state.CollectionProjects, id, "/projects", "project-saved")
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	id := r.PathValue("id")
	if !Confirmed(parser) {
		err := editor.ErrNotConfirmed
		s.failCatalog(w, r, parser, err, func(status int) { s.renderProjects(w, r, status, "", err) })
		return
	}
	if err := s.domain.DeleteProject(r.Context(), id); err != nil {
		s.failCatalog(w, r, parser, err, func(status int) { s.renderProjects(w, r, status, "", err) })
		return
	}
	s.done(w, r, parser, http.StatusOK, state.CollectionProjects, id, "/projects", "project-deleted")
}

func (s *Server) failCatalog(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, err error, render func(status int)) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Catalog write failed", log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Catalog form rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	if p.IsJSON() {
		writeJSON(w, status, map[string]any{"errors": userMessages(err)})
		return
	}
	notifyFailure(w, r, err)
	render(status)
}
