package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"collexa/listing"
)

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := listing.Filters{
		Category: q.Get("category"),
		Type:     listing.Type(q.Get("listing_type")),
		Search:   q.Get("search"),
		Page:     intParam(q.Get("page")),
		PageSize: intParam(q.Get("page_size")),
	}
	if v := q.Get("min_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondMessage(w, http.StatusBadRequest, "min_price must be a number")
			return
		}
		f.MinPrice = &price
	}
	if v := q.Get("max_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondMessage(w, http.StatusBadRequest, "max_price must be a number")
			return
		}
		f.MaxPrice = &price
	}

	listings, total, err := s.listings.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	respondData(w, http.StatusOK, pageView{
		Items:    toListingViews(listings, s.now()),
		Total:    int64(total),
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	var viewerID string
	if p, ok := principalFrom(r.Context()); ok {
		viewerID = p.UserID
	}

	l, err := s.listings.GetByID(r.Context(), chi.URLParam(r, "id"), viewerID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toListingView(l, s.now()))
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	l, err := s.listings.Create(r.Context(), p, listing.CreateParams{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Condition:    req.Condition,
		Price:        req.Price,
		Type:         listing.Type(req.Type),
		RentDuration: req.RentDuration,
		Images:       toImages(req.Images),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, toListingView(l, s.now()))
}

func (s *Server) handleMyListings(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	listings, err := s.listings.ListMine(r.Context(), p, r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toListingViews(listings, s.now()))
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req updateListingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	l, err := s.listings.Update(r.Context(), p, chi.URLParam(r, "id"), listing.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Condition:   req.Condition,
		Images:      toImages(req.Images),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toListingView(l, s.now()))
}

func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	if err := s.listings.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "listing deleted")
}

func (s *Server) handleReactivateListing(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	l, err := s.listings.Reactivate(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toListingView(l, s.now()))
}

func intParam(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}
