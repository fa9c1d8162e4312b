package service

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/partner-server-go/internal/config"
	"github.com/prepwise/partner-server-go/internal/database"
	"github.com/prepwise/partner-server-go/internal/mailer"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/repository"
	"github.com/prepwise/partner-server-go/internal/sse"
)

var errUnique = &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}

// memStore is an in-memory stand-in for the database shared by the fake repositories.
type memStore struct {
	mu            sync.Mutex
	users         map[string]model.User
	links         map[string]model.PartnerCandidate
	batches       map[string]model.CandidateBatch
	seats         map[string]model.SeatSubscription
	profiles      map[string]model.PartnerProfile
	exams         map[string]model.Exam
	enrollments   map[string]model.ExamEnrollment
	notifications map[string]model.Notification
	uploads       []model.CandidateUpload
	clock         time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]model.User{},
		links:         map[string]model.PartnerCandidate{},
		batches:       map[string]model.CandidateBatch{},
		seats:         map[string]model.SeatSubscription{},
		profiles:      map[string]model.PartnerProfile{},
		exams:         map[string]model.Exam{},
		enrollments:   map[string]model.ExamEnrollment{},
		notifications: map[string]model.Notification{},
		clock:         time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps so "latest" ordering is stable.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memStore{
		users:         cloneMap(s.users),
		links:         cloneMap(s.links),
		batches:       cloneMap(s.batches),
		seats:         cloneMap(s.seats),
		profiles:      cloneMap(s.profiles),
		exams:         cloneMap(s.exams),
		enrollments:   cloneMap(s.enrollments),
		notifications: cloneMap(s.notifications),
		uploads:       append([]model.CandidateUpload(nil), s.uploads...),
		clock:         s.clock,
	}
}

func (s *memStore) restore(from *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = from.users
	s.links = from.links
	s.batches = from.batches
	s.seats = from.seats
	s.profiles = from.profiles
	s.exams = from.exams
	s.enrollments = from.enrollments
	s.notifications = from.notifications
	s.uploads = from.uploads
}

// fakeTx rolls the store back when fn fails.
type fakeTx struct {
	st *memStore
}

func (f *fakeTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	snap := f.st.snapshot()
	if err := fn(nil); err != nil {
		f.st.restore(snap)
		return err
	}
	return nil
}

// users

type fakeUsers struct {
	st        *memStore
	createErr error
}

func (r *fakeUsers) WithTx(tx *sqlx.Tx) repository.UserRepository { return r }

func (r *fakeUsers) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if u, ok := r.st.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *fakeUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, u := range r.st.users {
		if u.Email == strings.ToLower(email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *fakeUsers) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, u := range r.st.users {
		if u.Email == params.Email {
			return nil, errUnique
		}
	}
	now := r.st.tick()
	u := model.User{
		ID:          uuid.NewString(),
		Email:       params.Email,
		Firstname:   params.Firstname,
		Lastname:    params.Lastname,
		AccountType: params.AccountType,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.st.users[u.ID] = u
	return &u, nil
}

func (r *fakeUsers) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	u := r.st.users[id]
	u.PasswordHash = &passwordHash
	r.st.users[id] = u
	return nil
}

func (r *fakeUsers) GrantFirstEnrollmentBonus(ctx context.Context, id string, seconds int) (*model.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	u, ok := r.st.users[id]
	if !ok || u.FirstEnrollmentRewarded {
		return nil, nil
	}
	u.FirstEnrollmentRewarded = true
	u.PracticeSeconds += seconds
	r.st.users[id] = u
	return &u, nil
}

// partner candidate links

type fakeLinks struct {
	st        *memStore
	createErr error
	// assignRace simulates another request assigning the link first.
	assignRace map[string]bool
}

func (r *fakeLinks) WithTx(tx *sqlx.Tx) repository.PartnerCandidateRepository { return r }

func (r *fakeLinks) Create(ctx context.Context, params model.CreatePartnerCandidateParams) (*model.PartnerCandidate, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, l := range r.st.links {
		if l.CandidateID != params.CandidateID {
			continue
		}
		if params.BatchID != nil && l.BatchID != nil && *l.BatchID == *params.BatchID {
			return nil, errUnique
		}
		if params.BatchID == nil && l.BatchID == nil && l.PartnerID == params.PartnerID {
			return nil, errUnique
		}
	}
	now := r.st.tick()
	l := model.PartnerCandidate{
		ID:           uuid.NewString(),
		PartnerID:    params.PartnerID,
		CandidateID:  params.CandidateID,
		BatchID:      params.BatchID,
		IsPaidFor:    params.IsPaidFor,
		InviteStatus: model.InviteStatusPending,
		InviteSentAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.st.links[l.ID] = l
	return &l, nil
}

func (r *fakeLinks) find(match func(model.PartnerCandidate) bool) *model.PartnerCandidate {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var found *model.PartnerCandidate
	for _, l := range r.st.links {
		if match(l) && (found == nil || l.CreatedAt.After(found.CreatedAt)) {
			l := l
			found = &l
		}
	}
	return found
}

func (r *fakeLinks) FindByCandidateAndBatch(ctx context.Context, candidateID, batchID string) (*model.PartnerCandidate, error) {
	return r.find(func(l model.PartnerCandidate) bool {
		return l.CandidateID == candidateID && l.BatchID != nil && *l.BatchID == batchID
	}), nil
}

func (r *fakeLinks) FindByPartnerAndCandidate(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error) {
	return r.find(func(l model.PartnerCandidate) bool {
		return l.PartnerID == partnerID && l.CandidateID == candidateID
	}), nil
}

func (r *fakeLinks) FindUnassigned(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error) {
	return r.find(func(l model.PartnerCandidate) bool {
		return l.PartnerID == partnerID && l.CandidateID == candidateID && l.BatchID == nil
	}), nil
}

func (r *fakeLinks) ListByPartnerAndCandidate(ctx context.Context, partnerID, candidateID string) ([]model.PartnerCandidate, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.PartnerCandidate
	for _, l := range r.st.links {
		if l.PartnerID == partnerID && l.CandidateID == candidateID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeLinks) List(ctx context.Context, filter model.ListCandidatesFilter) ([]model.CandidateView, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.CandidateView
	for _, l := range r.st.links {
		if l.PartnerID != filter.PartnerID {
			continue
		}
		if filter.BatchID != nil && (l.BatchID == nil || *l.BatchID != *filter.BatchID) {
			continue
		}
		u := r.st.users[l.CandidateID]
		out = append(out, *candidateView(&u, &l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InviteSentAt.After(out[j].InviteSentAt) })
	return out, nil
}

func (r *fakeLinks) MarkPaid(ctx context.Context, partnerID, candidateID string) ([]model.PartnerCandidate, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.PartnerCandidate
	for id, l := range r.st.links {
		if l.PartnerID == partnerID && l.CandidateID == candidateID {
			l.IsPaidFor = true
			r.st.links[id] = l
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLinks) SetInviteToken(ctx context.Context, id, tokenHash string, expiresAt, sentAt time.Time) (*model.PartnerCandidate, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	l, ok := r.st.links[id]
	if !ok || l.InviteStatus != model.InviteStatusPending {
		return nil, nil
	}
	l.InviteTokenHash = &tokenHash
	l.InviteTokenExpiresAt = &expiresAt
	l.InviteSentAt = sentAt
	r.st.links[id] = l
	return &l, nil
}

func (r *fakeLinks) AcceptInvite(ctx context.Context, id string, acceptedAt time.Time) (*model.PartnerCandidate, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	l, ok := r.st.links[id]
	if !ok || l.InviteStatus != model.InviteStatusPending {
		return nil, nil
	}
	l.InviteStatus = model.InviteStatusAccepted
	l.InviteAcceptedAt = &acceptedAt
	l.InviteTokenHash = nil
	l.InviteTokenExpiresAt = nil
	r.st.links[id] = l
	return &l, nil
}

func (r *fakeLinks) AssignToBatch(ctx context.Context, id, batchID string) (*model.PartnerCandidate, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	l, ok := r.st.links[id]
	if !ok || l.BatchID != nil || r.assignRace[l.CandidateID] {
		return nil, nil
	}
	l.BatchID = &batchID
	l.IsPaidFor = true
	r.st.links[id] = l
	return &l, nil
}

func (r *fakeLinks) ExpirePending(ctx context.Context, sentBefore time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, l := range r.st.links {
		if l.InviteStatus == model.InviteStatusPending && l.InviteSentAt.Before(sentBefore) {
			l.InviteStatus = model.InviteStatusExpired
			r.st.links[id] = l
			n++
		}
	}
	return n, nil
}

// batches

type fakeBatches struct{ st *memStore }

func (r *fakeBatches) Create(ctx context.Context, params model.CreateBatchParams) (*model.CandidateBatch, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, b := range r.st.batches {
		if b.PartnerID == params.PartnerID && b.BatchName == params.BatchName {
			return nil, errUnique
		}
	}
	b := model.CandidateBatch{ID: uuid.NewString(), PartnerID: params.PartnerID, BatchName: params.BatchName, CreatedAt: r.st.tick()}
	r.st.batches[b.ID] = b
	return &b, nil
}

func (r *fakeBatches) FindByID(ctx context.Context, id string) (*model.CandidateBatch, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if b, ok := r.st.batches[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r *fakeBatches) ListByPartner(ctx context.Context, partnerID string) ([]model.CandidateBatch, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.CandidateBatch
	for _, b := range r.st.batches {
		if b.PartnerID == partnerID {
			out = append(out, b)
		}
	}
	return out, nil
}

// seats

type fakeSeats struct {
	st           *memStore
	decrementErr error
	// findActiveErr fails FindActive once set.
	findActiveErr error
	// beforeReserve runs before a conditional increment, to simulate a competing writer.
	beforeReserve func()
}

func (r *fakeSeats) Create(ctx context.Context, params model.CreateSeatParams) (*model.SeatSubscription, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, s := range r.st.seats {
		if s.PartnerID == params.PartnerID && s.BatchID == params.BatchID && s.IsActive {
			return nil, errUnique
		}
	}
	now := r.st.tick()
	s := model.SeatSubscription{
		ID:             uuid.NewString(),
		PartnerID:      params.PartnerID,
		BatchID:        params.BatchID,
		SeatCount:      params.SeatCount,
		SessionsPerDay: params.SessionsPerDay,
		StartDate:      params.StartDate,
		EndDate:        params.EndDate,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.st.seats[s.ID] = s
	return &s, nil
}

func (r *fakeSeats) FindByID(ctx context.Context, id string) (*model.SeatSubscription, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if s, ok := r.st.seats[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *fakeSeats) FindActive(ctx context.Context, partnerID, batchID string) (*model.SeatSubscription, error) {
	if r.findActiveErr != nil {
		return nil, r.findActiveErr
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, s := range r.st.seats {
		if s.PartnerID == partnerID && s.BatchID == batchID && s.IsActive {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *fakeSeats) ListByPartner(ctx context.Context, partnerID string) ([]model.SeatSubscription, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.SeatSubscription
	for _, s := range r.st.seats {
		if s.PartnerID == partnerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSeats) IncrementAssigned(ctx context.Context, id string, n int) (*model.SeatSubscription, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.seats[id]
	if !ok {
		return nil, nil
	}
	s.SeatsAssigned += n
	r.st.seats[id] = s
	return &s, nil
}

func (r *fakeSeats) IncrementAssignedIfAvailable(ctx context.Context, id string, n int) (*model.SeatSubscription, error) {
	if r.beforeReserve != nil {
		r.beforeReserve()
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.seats[id]
	if !ok || !s.IsActive || s.SeatsAssigned+n > s.SeatCount {
		return nil, nil
	}
	s.SeatsAssigned += n
	r.st.seats[id] = s
	return &s, nil
}

func (r *fakeSeats) DecrementAssigned(ctx context.Context, id string, n int) (*model.SeatSubscription, error) {
	if r.decrementErr != nil {
		return nil, r.decrementErr
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.seats[id]
	if !ok {
		return nil, nil
	}
	s.SeatsAssigned = max(s.SeatsAssigned-n, 0)
	r.st.seats[id] = s
	return &s, nil
}

func (r *fakeSeats) Deactivate(ctx context.Context, partnerID, batchID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, s := range r.st.seats {
		if s.PartnerID == partnerID && s.BatchID == batchID && s.IsActive {
			s.IsActive = false
			r.st.seats[id] = s
			n++
		}
	}
	return n, nil
}

func (r *fakeSeats) DeactivateEnded(ctx context.Context, now time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, s := range r.st.seats {
		if s.IsActive && s.EndDate.Before(now) {
			s.IsActive = false
			r.st.seats[id] = s
			n++
		}
	}
	return n, nil
}

func (r *fakeSeats) UsageReport(ctx context.Context) ([]model.SeatUsage, error) {
	return nil, nil
}

// partners

type fakePartners struct {
	st      *memStore
	markErr error
}

func (r *fakePartners) FindProfile(ctx context.Context, partnerID string) (*model.PartnerProfile, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if p, ok := r.st.profiles[partnerID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *fakePartners) UpdateExamTypes(ctx context.Context, partnerID string, examTypes []string) (*model.PartnerProfile, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p := r.st.profiles[partnerID]
	p.UserID = partnerID
	p.ExamTypes = examTypes
	r.st.profiles[partnerID] = p
	return &p, nil
}

func (r *fakePartners) MarkFirstCandidateAdded(ctx context.Context, partnerID string) (bool, error) {
	if r.markErr != nil {
		return false, r.markErr
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p := r.st.profiles[partnerID]
	if p.AddedFirstCandidate {
		return false, nil
	}
	p.UserID = partnerID
	p.AddedFirstCandidate = true
	r.st.profiles[partnerID] = p
	return true, nil
}

// uploads

type fakeUploads struct{ st *memStore }

func (r *fakeUploads) Create(ctx context.Context, params model.CreateCandidateUploadParams) (*model.CandidateUpload, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	u := model.CandidateUpload{
		ID:         uuid.NewString(),
		PartnerID:  params.PartnerID,
		BatchID:    params.BatchID,
		ObjectKey:  params.ObjectKey,
		Filename:   params.Filename,
		TotalRows:  params.TotalRows,
		Successful: params.Successful,
		Failed:     params.Failed,
	}
	r.st.uploads = append(r.st.uploads, u)
	return &u, nil
}

// enrollments and exams

type fakeEnrollments struct {
	st *memStore
	// hideExisting makes lookups miss, as if a concurrent insert has not committed yet.
	hideExisting bool
}

func enrollmentKey(userID, examID string) string { return userID + "|" + examID }

func (r *fakeEnrollments) FindByUserAndExam(ctx context.Context, userID, examID string) (*model.ExamEnrollment, error) {
	if r.hideExisting {
		return nil, nil
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if e, ok := r.st.enrollments[enrollmentKey(userID, examID)]; ok {
		return &e, nil
	}
	return nil, nil
}

func (r *fakeEnrollments) Create(ctx context.Context, params model.CreateEnrollmentParams) (*model.ExamEnrollment, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	key := enrollmentKey(params.UserID, params.ExamID)
	if _, ok := r.st.enrollments[key]; ok {
		return nil, errUnique
	}
	e := model.ExamEnrollment{
		ID:                uuid.NewString(),
		UserID:            params.UserID,
		ExamID:            params.ExamID,
		PracticeFrequency: params.PracticeFrequency,
		ExamDate:          params.ExamDate,
		JoinedAt:          r.st.tick(),
	}
	r.st.enrollments[key] = e
	return &e, nil
}

func (r *fakeEnrollments) ListByUser(ctx context.Context, userID string) ([]model.ExamEnrollment, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.ExamEnrollment
	for _, e := range r.st.enrollments {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeExams struct{ st *memStore }

func (r *fakeExams) FindByID(ctx context.Context, id string) (*model.Exam, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if e, ok := r.st.exams[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (r *fakeExams) FindByIDs(ctx context.Context, ids []string) ([]model.Exam, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.Exam
	for _, id := range ids {
		if e, ok := r.st.exams[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeExams) List(ctx context.Context) ([]model.Exam, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.Exam
	for _, e := range r.st.exams {
		out = append(out, e)
	}
	return out, nil
}

type fakeNotifications struct{ st *memStore }

func (r *fakeNotifications) Create(ctx context.Context, params model.CreateNotificationParams) (*model.Notification, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := model.Notification{
		ID:        uuid.NewString(),
		UserID:    params.UserID,
		Type:      params.Type,
		Title:     params.Title,
		Body:      params.Body,
		CreatedAt: r.st.tick(),
	}
	r.st.notifications[n.ID] = n
	return &n, nil
}

func (r *fakeNotifications) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []model.Notification
	for _, n := range r.st.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotifications) MarkRead(ctx context.Context, id, userID string) (*model.Notification, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n, ok := r.st.notifications[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	now := r.st.tick()
	n.ReadAt = &now
	r.st.notifications[id] = n
	return &n, nil
}

// collaborators

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Invitation
	err  error
}

func (m *fakeMailer) SendInvitation(ctx context.Context, inv mailer.Invitation) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, inv)
	return nil
}

// tokenFor extracts the invitation token most recently mailed to email.
func (m *fakeMailer) tokenFor(t *testing.T, email string) string {
	t.Helper()
	return m.tokenFrom(t, email, "")
}

// tokenFrom is tokenFor restricted to invitations sent on behalf of partnerID.
// An empty partnerID matches any partner.
func (m *fakeMailer) tokenFrom(t *testing.T, email, partnerID string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].ToEmail != email {
			continue
		}
		u, err := url.Parse(m.sent[i].AcceptURL)
		require.NoError(t, err)
		if partnerID != "" && u.Query().Get("partner_id") != partnerID {
			continue
		}
		return u.Query().Get("token")
	}
	t.Fatalf("no invitation sent to %s", email)
	return ""
}

type fakeObjectStore struct {
	keys []string
	err  error
}

func (s *fakeObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "s3://uploads/" + key, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events map[string][]sse.Event
}

func (p *fakePublisher) Publish(ctx context.Context, userID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]sse.Event{}
	}
	p.events[userID] = append(p.events[userID], event)
	return nil
}

// env wires the services to a shared in-memory store.
type env struct {
	st            *memStore
	users         *fakeUsers
	links         *fakeLinks
	batches       *fakeBatches
	seats         *fakeSeats
	partners      *fakePartners
	enrollRepo    *fakeEnrollments
	mailer        *fakeMailer
	store         *fakeObjectStore
	publisher     *fakePublisher
	ledger        *SeatLedger
	enrollments   *EnrollmentService
	notifications *NotificationService
	candidates    *CandidateService
	partnerSvc    *PartnerService
	partnerID     string
}

func newEnv(t *testing.T, mode config.SeatReservationMode) *env {
	t.Helper()
	st := newMemStore()
	e := &env{
		st:         st,
		users:      &fakeUsers{st: st},
		links:      &fakeLinks{st: st},
		batches:    &fakeBatches{st: st},
		seats:      &fakeSeats{st: st},
		partners:   &fakePartners{st: st},
		enrollRepo: &fakeEnrollments{st: st},
		mailer:     &fakeMailer{},
		store:      &fakeObjectStore{},
		publisher:  &fakePublisher{},
		partnerID:  uuid.NewString(),
	}
	exams := &fakeExams{st: st}

	e.ledger = NewSeatLedger(e.seats, e.batches, mode)
	e.notifications = NewNotificationService(&fakeNotifications{st: st}, e.publisher)
	e.enrollments = NewEnrollmentService(e.enrollRepo, exams, e.users, e.notifications)
	e.partnerSvc = NewPartnerService(e.partners, exams)
	e.candidates = NewCandidateService(
		&fakeTx{st: st},
		e.users,
		e.links,
		e.batches,
		e.partners,
		&fakeUploads{st: st},
		e.ledger,
		e.enrollments,
		e.mailer,
		e.store,
		CandidateServiceConfig{AppBaseURL: "https://app.example.com/", InviteTokenTTL: 24 * time.Hour},
	)

	st.users[e.partnerID] = model.User{ID: e.partnerID, Email: "ops@academy.com", AccountType: model.AccountTypePartner, IsActive: true}
	st.profiles[e.partnerID] = model.PartnerProfile{UserID: e.partnerID, OrganizationName: "Academy", ExamTypes: pq.StringArray{}}
	return e
}

func (e *env) addExam(id string) {
	e.st.exams[id] = model.Exam{ID: id, Name: strings.ToUpper(id)}
}

func (e *env) setExamTypes(ids ...string) {
	p := e.st.profiles[e.partnerID]
	p.ExamTypes = ids
	e.st.profiles[e.partnerID] = p
}

func (e *env) batchWithSeats(t *testing.T, name string, seatCount int) (model.CandidateBatch, *model.SeatSubscription) {
	t.Helper()
	ctx := context.Background()
	batch, err := e.candidates.CreateBatch(ctx, e.partnerID, name)
	require.NoError(t, err)
	if seatCount == 0 {
		return *batch, nil
	}
	seat, err := e.ledger.CreateSeat(ctx, e.partnerID, CreateSeatInput{
		BatchID:   batch.ID,
		SeatCount: seatCount,
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return *batch, seat
}

func (e *env) seat(id string) model.SeatSubscription {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	return e.st.seats[id]
}

func (e *env) userByEmail(email string) *model.User {
	u, _ := e.users.FindByEmail(context.Background(), email)
	return u
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("boom")
