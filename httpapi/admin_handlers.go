package httpapi

import (
	"net/http"

	"collexa/admin"
)

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	stats, err := s.admin.Dashboard(r.Context(), p)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	page := pageFromQuery(r)

	users, total, err := s.admin.ListUsers(r.Context(), p, page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, pageView{
		Items:    users,
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	})
}

func (s *Server) handleAdminListings(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	page := pageFromQuery(r)

	listings, total, err := s.admin.ListListings(r.Context(), p, r.URL.Query().Get("status"), page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, pageView{
		Items:    listings,
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	})
}

func (s *Server) handleAdminReports(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	page := pageFromQuery(r)

	reports, total, err := s.admin.ListReports(r.Context(), p, r.URL.Query().Get("status"), page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, pageView{
		Items:    reports,
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	})
}

func pageFromQuery(r *http.Request) admin.Page {
	q := r.URL.Query()
	page := admin.Page{
		Number: intParam(q.Get("page")),
		Size:   intParam(q.Get("page_size")),
	}
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = 20
	}
	return page
}
