package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/order"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "userID"
	ctxKeyRole   ctxKey = "role"
)

type authAPI interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
}

type claimAPI interface {
	Create(ctx context.Context, params claim.CreateParams) (claim.Claim, error)
	Get(ctx context.Context, id string) (claim.Claim, error)
	List(ctx context.Context, filter claim.Filter) ([]claim.Claim, int, error)
	Take(ctx context.Context, id, arbitratorID string) (claim.Claim, error)
	RecordDecision(ctx context.Context, id string, input claim.DecisionInput, arbitratorID string) (claim.Claim, error)
	SubmitForApproval(ctx context.Context, id, message, arbitratorID string) (claim.Claim, error)
	ResolveApproval(ctx context.Context, id string, verdict claim.Verdict, comment, directorID string, role claim.Role) (claim.Claim, error)
	RequestAdditionalInfo(ctx context.Context, id, message, recipient, authorID string) (claim.Message, error)
}

// Server routes console API requests to the domain services.
type Server struct {
	authService  authAPI
	claimService claimAPI
	orderService *order.Service
}

// Handler builds the full route table with authentication applied to
// everything except the auth endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/claims", s.requireAuth(s.handleClaims))
	mux.HandleFunc("/api/claims/", s.requireAuth(s.handleClaimDetail))
	mux.HandleFunc("/api/orders/", s.requireAuth(s.handleOrder))
	return mux
}

// requireAuth validates the bearer token and stashes the caller identity in
// the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, role, err := s.authService.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     string(user.Role),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("login: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		User: userResponse{
			ID:       result.User.ID,
			Email:    result.User.Email,
			FullName: result.User.FullName,
			Role:     string(result.User.Role),
		},
	})
}

// handleClaims serves the claim collection: filtered listing and creation.
func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListClaims(w, r)
	case http.MethodPost:
		s.handleCreateClaim(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := claim.Filter{
		Status:       claim.Status(q.Get("status")),
		Kind:         claim.Kind(q.Get("kind")),
		ArbitratorID: q.Get("arbitratorId"),
		Search:       q.Get("search"),
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		filter.Page = page
	}
	if v := q.Get("pageSize"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid pageSize")
			return
		}
		filter.PageSize = size
	}
	if v := q.Get("createdFrom"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid createdFrom")
			return
		}
		filter.CreatedFrom = &t
	}
	if v := q.Get("createdTo"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid createdTo")
			return
		}
		filter.CreatedTo = &t
	}

	items, total, err := s.claimService.List(r.Context(), filter)
	if err != nil {
		writeClaimError(w, err)
		return
	}
	payload := claimListResponse{
		Items: make([]claimResponse, 0, len(items)),
		Total: total,
	}
	for _, c := range items {
		payload.Items = append(payload.Items, toClaimResponse(c))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var req createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.claimService.Create(r.Context(), claim.CreateParams{
		Kind:     claim.Kind(req.Kind),
		Priority: claim.Priority(req.Priority),
		Order: claim.OrderRef{
			ID:       req.Order.ID,
			Title:    req.Order.Title,
			Amount:   req.Order.Amount,
			Deadline: req.Order.Deadline,
		},
		Client: claim.Participant{ID: req.Client.ID, Name: req.Client.Name, Email: req.Client.Email},
		Expert: claim.Participant{ID: req.Expert.ID, Name: req.Expert.Name, Email: req.Expert.Email},
	})
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClaimResponse(created))
}

// handleClaimDetail routes /api/claims/{id} and its action sub-resources.
func (s *Server) handleClaimDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/claims/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "claim id required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		c, err := s.claimService.Get(r.Context(), id)
		if err != nil {
			writeClaimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toClaimResponse(c))
	case "take":
		s.handleTakeClaim(w, r, id)
	case "decision":
		s.handleRecordDecision(w, r, id)
	case "approval":
		s.handleApproval(w, r, id)
	case "messages":
		s.handleClaimMessage(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *Server) handleTakeClaim(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	c, err := s.claimService.Take(r.Context(), id, userID)
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimResponse(c))
}

func (s *Server) handleRecordDecision(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	c, err := s.claimService.RecordDecision(r.Context(), id, claim.DecisionInput{
		Type:             claim.DecisionType(req.Type),
		RefundAmount:     req.RefundAmount,
		Reasoning:        req.Reasoning,
		RequiresApproval: req.RequiresApproval,
	}, userID)
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimResponse(c))
}

// handleApproval covers both halves of the approval exchange: POST forwards
// the arbitrator's decision to the director, PATCH records the director
// verdict.
func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request, id string) {
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	role, _ := r.Context().Value(ctxKeyRole).(auth.Role)

	switch r.Method {
	case http.MethodPost:
		var req submitApprovalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		c, err := s.claimService.SubmitForApproval(r.Context(), id, req.Message, userID)
		if err != nil {
			writeClaimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toClaimResponse(c))
	case http.MethodPatch:
		var req resolveApprovalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		c, err := s.claimService.ResolveApproval(r.Context(), id, claim.Verdict(req.Verdict), req.Comment, userID, claim.Role(role))
		if err != nil {
			writeClaimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toClaimResponse(c))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleClaimMessage(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	msg, err := s.claimService.RequestAdditionalInfo(r.Context(), id, req.Body, req.Recipient, userID)
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "order id required")
		return
	}
	summary, err := s.orderService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(summary))
}

// writeClaimError maps the claim error taxonomy onto HTTP status codes.
func writeClaimError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, claim.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, claim.ErrConflict), errors.Is(err, claim.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, claim.ErrInvalidDecision), errors.Is(err, claim.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, claim.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("claim handler: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
