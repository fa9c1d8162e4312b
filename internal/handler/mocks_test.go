package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prepwise/partner-server-go/internal/auth"
	"github.com/prepwise/partner-server-go/internal/middleware"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/service"
)

var (
	partnerPrincipal   = &auth.Principal{UserID: "11111111-1111-1111-1111-111111111111", AccountType: model.AccountTypePartner}
	candidatePrincipal = &auth.Principal{UserID: "22222222-2222-2222-2222-222222222222", AccountType: model.AccountTypeCandidate}
)

type mockCandidates struct {
	createFunc   func(ctx context.Context, partnerID string, in service.CreateCandidateInput) (*service.CreateCandidateResult, error)
	uploadFunc   func(ctx context.Context, partnerID string, in service.UploadCSVInput) (*service.CSVUploadResult, error)
	batchFunc    func(ctx context.Context, partnerID, name string) (*model.CandidateBatch, error)
	batchesFunc  func(ctx context.Context, partnerID string) ([]model.CandidateBatch, error)
	listFunc     func(ctx context.Context, filter model.ListCandidatesFilter) ([]model.CandidateView, error)
	markPaidFunc func(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error)
	acceptFunc   func(ctx context.Context, candidateID string, in service.AcceptInviteInput) (*model.PartnerCandidate, error)
	assignFunc   func(ctx context.Context, partnerID, batchID string, ids []string) (*service.AssignResult, error)
}

func (m *mockCandidates) CreateCandidate(ctx context.Context, partnerID string, in service.CreateCandidateInput) (*service.CreateCandidateResult, error) {
	return m.createFunc(ctx, partnerID, in)
}

func (m *mockCandidates) UploadCandidatesCSV(ctx context.Context, partnerID string, in service.UploadCSVInput) (*service.CSVUploadResult, error) {
	return m.uploadFunc(ctx, partnerID, in)
}

func (m *mockCandidates) CreateBatch(ctx context.Context, partnerID, name string) (*model.CandidateBatch, error) {
	return m.batchFunc(ctx, partnerID, name)
}

func (m *mockCandidates) ListBatches(ctx context.Context, partnerID string) ([]model.CandidateBatch, error) {
	return m.batchesFunc(ctx, partnerID)
}

func (m *mockCandidates) ListCandidates(ctx context.Context, filter model.ListCandidatesFilter) ([]model.CandidateView, error) {
	return m.listFunc(ctx, filter)
}

func (m *mockCandidates) MarkPaid(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error) {
	return m.markPaidFunc(ctx, partnerID, candidateID)
}

func (m *mockCandidates) AcceptInvite(ctx context.Context, candidateID string, in service.AcceptInviteInput) (*model.PartnerCandidate, error) {
	return m.acceptFunc(ctx, candidateID, in)
}

func (m *mockCandidates) AssignToBatch(ctx context.Context, partnerID, batchID string, ids []string) (*service.AssignResult, error) {
	return m.assignFunc(ctx, partnerID, batchID, ids)
}

type mockSeats struct {
	createFunc       func(ctx context.Context, partnerID string, in service.CreateSeatInput) (*model.SeatSubscription, error)
	listFunc         func(ctx context.Context, partnerID string) ([]model.SeatSubscription, error)
	availabilityFunc func(ctx context.Context, partnerID, batchID string) (*service.SeatAvailability, error)
	deactivateFunc   func(ctx context.Context, partnerID, batchID string) error
}

func (m *mockSeats) CreateSeat(ctx context.Context, partnerID string, in service.CreateSeatInput) (*model.SeatSubscription, error) {
	return m.createFunc(ctx, partnerID, in)
}

func (m *mockSeats) ListSeats(ctx context.Context, partnerID string) ([]model.SeatSubscription, error) {
	return m.listFunc(ctx, partnerID)
}

func (m *mockSeats) Availability(ctx context.Context, partnerID, batchID string) (*service.SeatAvailability, error) {
	return m.availabilityFunc(ctx, partnerID, batchID)
}

func (m *mockSeats) Deactivate(ctx context.Context, partnerID, batchID string) error {
	return m.deactivateFunc(ctx, partnerID, batchID)
}

type mockPartners struct {
	profileFunc func(ctx context.Context, partnerID string) (*model.PartnerProfile, error)
	updateFunc  func(ctx context.Context, partnerID string, examIDs []string) (*model.PartnerProfile, error)
	examsFunc   func(ctx context.Context) ([]model.Exam, error)
}

func (m *mockPartners) Profile(ctx context.Context, partnerID string) (*model.PartnerProfile, error) {
	return m.profileFunc(ctx, partnerID)
}

func (m *mockPartners) UpdateExamTypes(ctx context.Context, partnerID string, examIDs []string) (*model.PartnerProfile, error) {
	return m.updateFunc(ctx, partnerID, examIDs)
}

func (m *mockPartners) ListExams(ctx context.Context) ([]model.Exam, error) {
	return m.examsFunc(ctx)
}

type mockEnrollments struct {
	enrollFunc func(ctx context.Context, in service.EnrollInput) (*model.ExamEnrollment, error)
	listFunc   func(ctx context.Context, userID string) ([]model.ExamEnrollment, error)
}

func (m *mockEnrollments) Enroll(ctx context.Context, in service.EnrollInput) (*model.ExamEnrollment, error) {
	return m.enrollFunc(ctx, in)
}

func (m *mockEnrollments) ListEnrollments(ctx context.Context, userID string) ([]model.ExamEnrollment, error) {
	return m.listFunc(ctx, userID)
}

type mockInbox struct {
	listFunc     func(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error)
	markReadFunc func(ctx context.Context, userID, id string) (*model.Notification, error)
}

func (m *mockInbox) List(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	return m.listFunc(ctx, userID, limit, offset)
}

func (m *mockInbox) MarkRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	return m.markReadFunc(ctx, userID, id)
}

// asPrincipal runs h with p attached to the request context; nil leaves the request anonymous.
func asPrincipal(h http.Handler, p *auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			r = r.WithContext(middleware.WithPrincipal(r.Context(), p))
		}
		h.ServeHTTP(w, r)
	})
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
	Metadata   json.RawMessage `json:"metadata"`
	Details    json.RawMessage `json:"details"`
}

func serve(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}
