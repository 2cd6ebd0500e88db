package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/order"
)

type stubAuthService struct {
	registerUser *auth.User
	registerErr  error
	loginResult  auth.LoginResult
	loginErr     error
	verifyUserID string
	verifyRole   auth.Role
	verifyErr    error
}

func (s *stubAuthService) Register(_ context.Context, _ auth.RegisterRequest) (*auth.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubAuthService) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuthService) VerifyToken(_ string) (string, auth.Role, error) {
	return s.verifyUserID, s.verifyRole, s.verifyErr
}

type stubClaimService struct {
	claim      claim.Claim
	claims     []claim.Claim
	total      int
	message    claim.Message
	err        error
	resolveErr error
}

func (s *stubClaimService) Create(_ context.Context, _ claim.CreateParams) (claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubClaimService) Get(_ context.Context, _ string) (claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubClaimService) List(_ context.Context, _ claim.Filter) ([]claim.Claim, int, error) {
	return s.claims, s.total, s.err
}

func (s *stubClaimService) Take(_ context.Context, _, _ string) (claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubClaimService) RecordDecision(_ context.Context, _ string, _ claim.DecisionInput, _ string) (claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubClaimService) SubmitForApproval(_ context.Context, _, _, _ string) (claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubClaimService) ResolveApproval(_ context.Context, _ string, _ claim.Verdict, _, _ string, _ claim.Role) (claim.Claim, error) {
	if s.resolveErr != nil {
		return claim.Claim{}, s.resolveErr
	}
	return s.claim, s.err
}

func (s *stubClaimService) RequestAdditionalInfo(_ context.Context, _, _, _, _ string) (claim.Message, error) {
	return s.message, s.err
}

type stubOrderRepo struct {
	summary order.Summary
	err     error
}

func (s *stubOrderRepo) GetByID(_ context.Context, _ string) (order.Summary, error) {
	return s.summary, s.err
}

func (s *stubOrderRepo) ListRecent(_ context.Context, _ int) ([]order.Summary, error) {
	return nil, s.err
}

func sampleClaim() claim.Claim {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return claim.Claim{
		ID:        "c1",
		Kind:      claim.KindRefund,
		Priority:  claim.PriorityHigh,
		Order:     claim.OrderRef{ID: "o1", Title: "History essay", Amount: 15000},
		Client:    claim.Participant{ID: "u1", Name: "Client One", Email: "client@example.com"},
		Expert:    claim.Participant{ID: "u2", Name: "Expert Two", Email: "expert@example.com"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer token")
	return req
}

func TestHandleClaimDetail_Success(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: &stubClaimService{claim: sampleClaim()},
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/claims/c1", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp claimResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "c1" || resp.Status != string(claim.StatusNew) {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleClaimDetail_NotFound(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: &stubClaimService{err: claim.ErrNotFound},
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/claims/missing", ""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleClaims_MissingToken(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{},
		claimService: &stubClaimService{},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/claims", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleListClaims_FilterPassthrough(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: &stubClaimService{claims: []claim.Claim{sampleClaim()}, total: 7},
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/claims?status=new&page=1&pageSize=10", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload claimListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Total != 7 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleListClaims_BadPage(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: &stubClaimService{},
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/claims?page=abc", ""))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleListClaims_UnknownStatusFilter(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: claim.NewService(claim.NewMemoryStore()),
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/claims?status=bogus", ""))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status filter, got %d", rec.Code)
	}
}

func TestHandleCreateClaim_UnknownKind(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: claim.NewService(claim.NewMemoryStore()),
	}

	body := `{"kind":"bogus","order":{"id":"o1","title":"Essay","amount":5000},"client":{"id":"u1"},"expert":{"id":"u2"}}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/claims", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rec.Code)
	}
}

func TestHandleTakeClaim_Conflict(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: &stubClaimService{err: claim.ErrConflict},
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/claims/c1/take", ""))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleRecordDecision_InvalidDecision(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: &stubClaimService{err: claim.ErrInvalidDecision},
	}

	body := `{"type":"partial_refund","refundAmount":999999,"reasoning":"too much requested"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/claims/c1/decision", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleResolveApproval_Forbidden(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: &stubClaimService{resolveErr: claim.ErrUnauthorized},
	}

	body := `{"verdict":"approved"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/claims/c1/approval", body))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleResolveApproval_AlreadyResolved(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "dir-1", verifyRole: auth.RoleDirector},
		claimService: &stubClaimService{resolveErr: claim.ErrAlreadyResolved},
	}

	body := `{"verdict":"rejected","comment":"revisit the refund amount"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/claims/c1/approval", body))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleClaimMessage_Created(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		claimService: &stubClaimService{message: claim.Message{
			ID:        "m1",
			ClaimID:   "c1",
			AuthorID:  "arb-1",
			Body:      "please attach the original brief",
			CreatedAt: time.Now().UTC(),
		}},
	}

	body := `{"recipient":"client","body":"please attach the original brief"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/claims/c1/messages", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "m1" || resp.ClaimID != "c1" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleOrder_Success(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	server := &Server{
		authService: &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		orderService: order.NewService(&stubOrderRepo{
			summary: order.Summary{ID: "o1", Title: "History essay", Amount: 15000, Status: "completed", CreatedAt: now},
		}),
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/orders/o1", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "o1" || resp.Amount != 15000 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleOrder_NotFound(t *testing.T) {
	server := &Server{
		authService:  &stubAuthService{verifyUserID: "arb-1", verifyRole: auth.RoleArbitrator},
		orderService: order.NewService(&stubOrderRepo{err: order.ErrNotFound}),
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/orders/missing", ""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
