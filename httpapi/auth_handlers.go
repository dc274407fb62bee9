package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"collexa/auth"
)

const (
	otpPerHour    = 3
	loginAttempts = 5
	loginWindow   = 15 * time.Minute
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.limiter.Allow(r.Context(), "otp:"+strings.ToLower(req.Email), otpPerHour, time.Hour); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.auth.Signup(r.Context(), req); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "verification code sent")
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.limiter.Allow(r.Context(), "otp:"+strings.ToLower(req.Email), otpPerHour, time.Hour); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.auth.ResendOTP(r.Context(), req.Email); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "verification code sent")
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.auth.VerifyOTP(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, sessionView{
		Token: result.Token,
		User:  toUserView(result.User),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.limiter.Allow(r.Context(), "login:"+clientIP(r), loginAttempts, loginWindow); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.auth.Login(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, sessionView{
		Token: result.Token,
		User:  toUserView(result.User),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	user, err := s.auth.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toUserView(*user))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
