package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"collexa/report"
)

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	rep, err := s.reports.Create(r.Context(), p, report.CreateParams{
		ListingID:   req.ListingID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, toReportView(rep))
}

func (s *Server) handleMyReports(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	reports, err := s.reports.ListMine(r.Context(), p)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toReportViews(reports))
}

func (s *Server) handleReviewReport(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req reviewReportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	rep, err := s.reports.Review(r.Context(), p, chi.URLParam(r, "id"), report.ReviewParams{
		Action:        report.Status(req.Action),
		Note:          req.Note,
		CascadeDelete: req.DeleteListing,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toReportView(rep))
}
