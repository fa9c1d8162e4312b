package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/prepwise/partner-server-go/internal/audit"
	"github.com/prepwise/partner-server-go/internal/config"
	"github.com/prepwise/partner-server-go/internal/csvimport"
	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/mailer"
	"github.com/prepwise/partner-server-go/internal/metrics"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/repository"
	"github.com/prepwise/partner-server-go/internal/storage"
	"github.com/prepwise/partner-server-go/internal/util"
)

const (
	maxNameLength      = 100
	maxBatchNameLength = 100
	minPasswordLength  = 8

	reasonAlreadyExists   = "Candidate already exists"
	reasonCreateFailed    = "Failed to create candidate"
	reasonNonCandidate    = "Email belongs to a non-candidate account"
	reasonAlreadyAssigned = "already assigned to a batch"
	reasonNotFound        = "candidate not found"
	reasonAssignFailed    = "assignment failed"
)

type CandidateServiceConfig struct {
	AppBaseURL     string
	InviteTokenTTL time.Duration
}

type CreateCandidateInput struct {
	BatchID   *string
	Firstname string
	Lastname  string
	Email     string
}

type CreateCandidateResult struct {
	Candidate *model.CandidateView
	Warnings  []Warning
}

type UploadCSVInput struct {
	BatchID  *string
	Filename string
	Content  []byte
}

type CSVUploadResult struct {
	TotalRows  int                   `json:"total_rows"`
	Successful int                   `json:"successful"`
	Failed     int                   `json:"failed"`
	Errors     []csvimport.RowError  `json:"errors"`
	Candidates []model.CandidateView `json:"candidates"`
	Warnings   []Warning             `json:"warnings,omitempty"`
}

type AcceptInviteInput struct {
	PartnerID string
	Token     string
	Password  *string
}

type AssignmentFailure struct {
	CandidateID string `json:"candidate_id"`
	Reason      string `json:"reason"`
}

type AssignResult struct {
	Succeeded      []string            `json:"succeeded"`
	Failed         []AssignmentFailure `json:"failed"`
	SucceededCount int                 `json:"succeeded_count"`
	FailedCount    int                 `json:"failed_count"`
}

// CandidateService onboards candidates for partners: single and bulk
// creation, seat assignment and the invitation lifecycle.
type CandidateService struct {
	tx          TxRunner
	users       repository.UserRepository
	links       repository.PartnerCandidateRepository
	batches     repository.BatchRepository
	partners    repository.PartnerRepository
	uploads     repository.CandidateUploadRepository
	ledger      *SeatLedger
	enrollments *EnrollmentService
	mailer      mailer.Mailer
	store       storage.ObjectStore
	config      CandidateServiceConfig
	now         func() time.Time
}

func NewCandidateService(
	tx TxRunner,
	users repository.UserRepository,
	links repository.PartnerCandidateRepository,
	batches repository.BatchRepository,
	partners repository.PartnerRepository,
	uploads repository.CandidateUploadRepository,
	ledger *SeatLedger,
	enrollments *EnrollmentService,
	mail mailer.Mailer,
	store storage.ObjectStore,
	cfg CandidateServiceConfig,
) *CandidateService {
	if cfg.InviteTokenTTL <= 0 {
		cfg.InviteTokenTTL = 24 * time.Hour
	}
	if store == nil {
		store = storage.NopStore{}
	}
	return &CandidateService{
		tx:          tx,
		users:       users,
		links:       links,
		batches:     batches,
		partners:    partners,
		uploads:     uploads,
		ledger:      ledger,
		enrollments: enrollments,
		mailer:      mail,
		store:       store,
		config:      cfg,
		now:         time.Now,
	}
}

// CreateCandidate adds one candidate for a partner. When the batch has a
// free seat the candidate is paid for and placed in the batch; otherwise the
// candidate is created unpaid without a batch.
func (s *CandidateService) CreateCandidate(ctx context.Context, partnerID string, in CreateCandidateInput) (*CreateCandidateResult, error) {
	firstname, lastname, email, err := validateCandidateFields(in.Firstname, in.Lastname, in.Email)
	if err != nil {
		return nil, err
	}

	batch, err := s.resolveBatch(ctx, partnerID, in.BatchID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user != nil && user.AccountType != model.AccountTypeCandidate {
		return nil, apperrors.ValidationError(reasonNonCandidate)
	}
	if user != nil {
		exists, err := s.linkExists(ctx, partnerID, user.ID, batch)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.ValidationError(reasonAlreadyExists)
		}
	}

	var (
		seat     *model.SeatSubscription
		reserved int
	)
	if batch != nil {
		seat, reserved, err = s.ledger.ReserveUpTo(ctx, partnerID, batch.ID, 1)
		if err != nil {
			return nil, err
		}
	}
	paid := reserved == 1

	var batchID *string
	if paid {
		batchID = &batch.ID
	} else if user != nil {
		// Unpaid links carry no batch, so the partner-wide unassigned slot must be free.
		existing, err := s.links.FindUnassigned(ctx, partnerID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("find unassigned link: %w", err)
		}
		if existing != nil {
			return nil, apperrors.ValidationError(reasonAlreadyExists)
		}
	}

	user, link, err := s.persistCandidate(ctx, partnerID, user, firstname, lastname, email, batchID, paid)
	if err != nil {
		if paid {
			s.ledger.ReleaseOrLog(ctx, partnerID, seat.ID, 1)
		}
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.ValidationError(reasonAlreadyExists)
		}
		return nil, err
	}

	metrics.RecordCandidateCreated(metrics.SourceSingle, paid)
	log.Info().
		Str("partnerId", partnerID).
		Str("candidateId", user.ID).
		Bool("paid", paid).
		Msg("candidate created")
	audit.Log(ctx, audit.Event{
		Type:      audit.EventCandidateCreate,
		ActorID:   partnerID,
		PartnerID: partnerID,
		Details:   map[string]any{"candidateId": user.ID, "paid": paid, "source": metrics.SourceSingle},
	})

	warnings := s.afterCreate(ctx, partnerID, []createdCandidate{{user: user, link: link}})

	return &CreateCandidateResult{
		Candidate: candidateView(user, link),
		Warnings:  warnings,
	}, nil
}

// UploadCandidatesCSV creates candidates from a CSV file. Rows are validated
// independently; valid rows fill the batch's free seats in file order and the
// rest are created unpaid.
func (s *CandidateService) UploadCandidatesCSV(ctx context.Context, partnerID string, in UploadCSVInput) (*CSVUploadResult, error) {
	batch, err := s.resolveBatch(ctx, partnerID, in.BatchID)
	if err != nil {
		return nil, err
	}

	parsed, err := csvimport.Parse(bytes.NewReader(in.Content))
	if err != nil {
		var headerErr *csvimport.HeaderError
		switch {
		case errors.As(err, &headerErr):
			return nil, apperrors.CSVHeaderMissing(headerErr.Missing)
		case errors.Is(err, csvimport.ErrTooManyRows):
			return nil, apperrors.ValidationError(fmt.Sprintf("CSV file exceeds %d rows", csvimport.MaxRows))
		default:
			return nil, apperrors.ValidationError("Invalid CSV file").WithCause(err)
		}
	}

	result := &CSVUploadResult{
		Errors:     append([]csvimport.RowError{}, parsed.Errors...),
		Candidates: []model.CandidateView{},
	}

	objectKey, warning := s.storeUpload(ctx, partnerID, in.Content)
	if warning != nil {
		result.Warnings = append(result.Warnings, *warning)
	}

	type pendingRow struct {
		row  csvimport.Row
		user *model.User
	}
	pending := make([]pendingRow, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		user, err := s.users.FindByEmail(ctx, row.Email)
		if err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		if user != nil && user.AccountType != model.AccountTypeCandidate {
			result.Errors = append(result.Errors, csvimport.RowError{Row: row.Number, Email: row.Email, Reason: reasonNonCandidate})
			continue
		}
		if user != nil {
			exists, err := s.linkExists(ctx, partnerID, user.ID, batch)
			if err != nil {
				return nil, err
			}
			if exists {
				result.Errors = append(result.Errors, csvimport.RowError{Row: row.Number, Email: row.Email, Reason: reasonAlreadyExists})
				continue
			}
		}
		pending = append(pending, pendingRow{row: row, user: user})
	}

	var (
		seat     *model.SeatSubscription
		reserved int
	)
	if batch != nil && len(pending) > 0 {
		seat, reserved, err = s.ledger.ReserveUpTo(ctx, partnerID, batch.ID, len(pending))
		if err != nil {
			return nil, err
		}
	}

	unused := reserved
	created := make([]createdCandidate, 0, len(pending))
	for i, p := range pending {
		paid := i < reserved
		var batchID *string
		if paid {
			batchID = &batch.ID
		}

		user, link, err := s.persistCandidate(ctx, partnerID, p.user, p.row.Firstname, p.row.Lastname, p.row.Email, batchID, paid)
		if err != nil {
			reason := reasonCreateFailed
			if repository.IsUniqueViolation(err) {
				reason = reasonAlreadyExists
			} else {
				log.Error().Err(err).Str("partnerId", partnerID).Int("row", p.row.Number).Msg("csv row create failed")
			}
			result.Errors = append(result.Errors, csvimport.RowError{Row: p.row.Number, Email: p.row.Email, Reason: reason})
			metrics.CSVRows.WithLabelValues("failed").Inc()
			continue
		}

		if paid {
			unused--
		}
		metrics.RecordCandidateCreated(metrics.SourceCSV, paid)
		metrics.CSVRows.WithLabelValues("created").Inc()
		created = append(created, createdCandidate{user: user, link: link})
		result.Candidates = append(result.Candidates, *candidateView(user, link))
	}

	if unused > 0 {
		s.ledger.ReleaseOrLog(ctx, partnerID, seat.ID, unused)
	}

	metrics.CSVRows.WithLabelValues("rejected").Add(float64(len(parsed.Errors)))

	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Row < result.Errors[j].Row })
	result.Successful = len(result.Candidates)
	result.Failed = len(result.Errors)
	result.TotalRows = result.Successful + result.Failed

	if len(created) > 0 {
		result.Warnings = append(result.Warnings, s.afterCreate(ctx, partnerID, created)...)
	}

	if _, err := s.uploads.Create(ctx, model.CreateCandidateUploadParams{
		PartnerID:  partnerID,
		BatchID:    batchIDOf(batch),
		ObjectKey:  objectKey,
		Filename:   in.Filename,
		TotalRows:  result.TotalRows,
		Successful: result.Successful,
		Failed:     result.Failed,
	}); err != nil {
		log.Warn().Err(err).Str("partnerId", partnerID).Msg("failed to record candidate upload")
		metrics.PostCommitFailures.WithLabelValues(TaskUploadAudit).Inc()
		result.Warnings = append(result.Warnings, Warning{Task: TaskUploadAudit, Message: err.Error()})
	}

	log.Info().
		Str("partnerId", partnerID).
		Int("totalRows", result.TotalRows).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("paid", reserved-unused).
		Msg("csv upload processed")
	audit.Log(ctx, audit.Event{
		Type:      audit.EventCSVUpload,
		ActorID:   partnerID,
		PartnerID: partnerID,
		Details: map[string]any{
			"filename":   in.Filename,
			"totalRows":  result.TotalRows,
			"successful": result.Successful,
			"failed":     result.Failed,
		},
	})

	return result, nil
}

func (s *CandidateService) CreateBatch(ctx context.Context, partnerID, name string) (*model.CandidateBatch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.MissingRequired("batch_name")
	}
	if len(name) > maxBatchNameLength {
		return nil, apperrors.InvalidInput("batch_name", fmt.Sprintf("must be at most %d characters", maxBatchNameLength))
	}

	batch, err := s.batches.Create(ctx, model.CreateBatchParams{PartnerID: partnerID, BatchName: name})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("Batch")
		}
		return nil, fmt.Errorf("create batch: %w", err)
	}

	log.Info().Str("partnerId", partnerID).Str("batchId", batch.ID).Msg("batch created")
	return batch, nil
}

func (s *CandidateService) ListBatches(ctx context.Context, partnerID string) ([]model.CandidateBatch, error) {
	batches, err := s.batches.ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	if batches == nil {
		batches = []model.CandidateBatch{}
	}
	return batches, nil
}

func (s *CandidateService) ListCandidates(ctx context.Context, filter model.ListCandidatesFilter) ([]model.CandidateView, error) {
	if filter.BatchID != nil && !util.IsValidUUID(*filter.BatchID) {
		return nil, apperrors.ValidationError("Invalid batch")
	}

	candidates, err := s.links.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if candidates == nil {
		candidates = []model.CandidateView{}
	}
	return candidates, nil
}

// MarkPaid flags every link between the partner and candidate as paid. Seat
// counters are not touched.
func (s *CandidateService) MarkPaid(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error) {
	if !util.IsValidUUID(candidateID) {
		return nil, apperrors.NotFound("Candidate")
	}

	links, err := s.links.MarkPaid(ctx, partnerID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if len(links) == 0 {
		return nil, apperrors.NotFound("Candidate")
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventMarkPaid,
		ActorID:   partnerID,
		PartnerID: partnerID,
		Details:   map[string]any{"candidateId": candidateID, "links": len(links)},
	})

	sort.Slice(links, func(i, j int) bool { return links[i].CreatedAt.After(links[j].CreatedAt) })
	return &links[0], nil
}

// AcceptInvite moves a pending invitation to accepted. The caller proves
// ownership with the token from the invitation email.
func (s *CandidateService) AcceptInvite(ctx context.Context, candidateID string, in AcceptInviteInput) (*model.PartnerCandidate, error) {
	if strings.TrimSpace(in.Token) == "" {
		return nil, apperrors.MissingRequired("token")
	}
	if in.PartnerID == "" {
		return nil, apperrors.MissingRequired("partner_id")
	}
	if in.Password != nil && len(*in.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if !util.IsValidUUID(candidateID) || !util.IsValidUUID(in.PartnerID) {
		return nil, apperrors.InvalidToken("Invalid or expired invitation")
	}

	links, err := s.links.ListByPartnerAndCandidate(ctx, in.PartnerID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	if len(links) == 0 {
		return nil, apperrors.NotFound("Invitation")
	}

	var pending []model.PartnerCandidate
	for _, l := range links {
		if l.InviteStatus.CanAccept() {
			pending = append(pending, l)
		}
	}
	if len(pending) == 0 {
		return nil, apperrors.InvalidInviteState(fmt.Sprintf("Invitation is already %s", links[0].InviteStatus))
	}

	now := s.now()
	var link *model.PartnerCandidate
	for i := range pending {
		l := &pending[i]
		if l.HasInviteToken(now) && util.InviteTokenMatches(in.Token, *l.InviteTokenHash) {
			link = l
			break
		}
	}
	if link == nil {
		audit.Log(ctx, audit.Event{
			Type:      audit.EventAuthFailure,
			ActorID:   candidateID,
			PartnerID: in.PartnerID,
			Details:   map[string]any{"reason": "invite_token"},
		})
		return nil, apperrors.InvalidToken("Invalid or expired invitation")
	}

	var passwordHash *string
	if in.Password != nil {
		hash, err := util.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = &hash
	}

	var accepted *model.PartnerCandidate
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		accepted, err = s.links.WithTx(tx).AcceptInvite(ctx, link.ID, now)
		if err != nil {
			return err
		}
		if accepted == nil {
			return apperrors.InvalidInviteState("Invitation is no longer pending")
		}
		if passwordHash == nil {
			return nil
		}
		return s.users.WithTx(tx).SetPasswordHash(ctx, candidateID, *passwordHash)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("accept invite: %w", err)
	}

	log.Info().
		Str("partnerId", in.PartnerID).
		Str("candidateId", candidateID).
		Str("linkId", accepted.ID).
		Msg("invitation accepted")
	audit.Log(ctx, audit.Event{
		Type:      audit.EventInviteAccept,
		ActorID:   candidateID,
		PartnerID: in.PartnerID,
	})

	return accepted, nil
}

// AssignToBatch moves unassigned candidates into a batch, consuming one seat
// each. The batch must have enough free seats for every eligible candidate.
func (s *CandidateService) AssignToBatch(ctx context.Context, partnerID, batchID string, candidateIDs []string) (*AssignResult, error) {
	if len(candidateIDs) == 0 {
		return nil, apperrors.MissingRequired("candidate_ids")
	}
	if len(candidateIDs) > csvimport.MaxRows {
		return nil, apperrors.InvalidInput("candidate_ids", fmt.Sprintf("at most %d per request", csvimport.MaxRows))
	}

	batch, err := s.resolveBatch(ctx, partnerID, &batchID)
	if err != nil {
		return nil, err
	}

	result := &AssignResult{Succeeded: []string{}, Failed: []AssignmentFailure{}}
	fail := func(id, reason string) {
		result.Failed = append(result.Failed, AssignmentFailure{CandidateID: id, Reason: reason})
	}

	var eligible []*model.PartnerCandidate
	seen := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		if !util.IsValidUUID(id) {
			fail(id, reasonNotFound)
			continue
		}
		link, err := s.links.FindUnassigned(ctx, partnerID, id)
		if err != nil {
			return nil, fmt.Errorf("find unassigned link: %w", err)
		}
		if link != nil {
			eligible = append(eligible, link)
			continue
		}
		other, err := s.links.FindByPartnerAndCandidate(ctx, partnerID, id)
		if err != nil {
			return nil, fmt.Errorf("find link: %w", err)
		}
		if other != nil {
			fail(id, reasonAlreadyAssigned)
		} else {
			fail(id, reasonNotFound)
		}
	}

	if len(eligible) > 0 {
		seat, err := s.ledger.GetActiveSeat(ctx, partnerID, batch.ID)
		if err != nil {
			return nil, err
		}
		available := s.ledger.AvailableSeats(seat)
		if available < len(eligible) {
			return nil, apperrors.InsufficientSeats(available, len(eligible))
		}
		if err := s.ledger.Reserve(ctx, seat.ID, len(eligible)); err != nil {
			if errors.Is(err, ErrSeatsExhausted) {
				latest, err := s.ledger.GetActiveSeat(ctx, partnerID, batch.ID)
				if err != nil {
					return nil, err
				}
				return nil, apperrors.InsufficientSeats(s.ledger.AvailableSeats(latest), len(eligible))
			}
			return nil, err
		}

		lost := 0
		for _, link := range eligible {
			assigned, err := s.links.AssignToBatch(ctx, link.ID, batch.ID)
			switch {
			case err != nil && repository.IsUniqueViolation(err):
				lost++
				fail(link.CandidateID, reasonAlreadyAssigned)
			case err != nil:
				lost++
				log.Error().Err(err).Str("candidateId", link.CandidateID).Msg("batch assignment failed")
				fail(link.CandidateID, reasonAssignFailed)
			case assigned == nil:
				lost++
				fail(link.CandidateID, reasonAlreadyAssigned)
			default:
				result.Succeeded = append(result.Succeeded, link.CandidateID)
			}
		}
		if lost > 0 {
			s.ledger.ReleaseOrLog(ctx, partnerID, seat.ID, lost)
		}
	}

	result.SucceededCount = len(result.Succeeded)
	result.FailedCount = len(result.Failed)

	audit.Log(ctx, audit.Event{
		Type:      audit.EventBatchAssign,
		ActorID:   partnerID,
		PartnerID: partnerID,
		Details: map[string]any{
			"batchId":   batch.ID,
			"succeeded": result.SucceededCount,
			"failed":    result.FailedCount,
		},
	})

	return result, nil
}

// ExpireStaleInvites marks invitations pending longer than maxAge as expired.
func (s *CandidateService) ExpireStaleInvites(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := s.links.ExpirePending(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	if n > 0 {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventInviteExpire,
			Details: map[string]any{"count": n},
		})
	}
	return n, nil
}

func (s *CandidateService) resolveBatch(ctx context.Context, partnerID string, batchID *string) (*model.CandidateBatch, error) {
	if batchID == nil || strings.TrimSpace(*batchID) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*batchID)
	if !util.IsValidUUID(id) {
		return nil, apperrors.ValidationError("Invalid batch")
	}
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	if batch == nil || batch.PartnerID != partnerID {
		return nil, apperrors.ValidationError("Invalid batch")
	}
	return batch, nil
}

// linkExists applies the uniqueness rule: within a batch a candidate appears
// once; without a batch a candidate is linked to a partner once.
func (s *CandidateService) linkExists(ctx context.Context, partnerID, candidateID string, batch *model.CandidateBatch) (bool, error) {
	var (
		link *model.PartnerCandidate
		err  error
	)
	if batch != nil {
		link, err = s.links.FindByCandidateAndBatch(ctx, candidateID, batch.ID)
	} else {
		link, err = s.links.FindByPartnerAndCandidate(ctx, partnerID, candidateID)
	}
	if err != nil {
		return false, fmt.Errorf("find existing link: %w", err)
	}
	return link != nil, nil
}

// persistCandidate creates the user when new and the partner link in one transaction.
func (s *CandidateService) persistCandidate(
	ctx context.Context,
	partnerID string,
	existing *model.User,
	firstname, lastname, email string,
	batchID *string,
	paid bool,
) (*model.User, *model.PartnerCandidate, error) {
	var (
		user *model.User
		link *model.PartnerCandidate
	)
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		user = existing
		if user == nil {
			created, err := s.users.WithTx(tx).Create(ctx, model.CreateUserParams{
				Email:       email,
				Firstname:   firstname,
				Lastname:    lastname,
				AccountType: model.AccountTypeCandidate,
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			user = created
		}

		var err error
		link, err = s.links.WithTx(tx).Create(ctx, model.CreatePartnerCandidateParams{
			PartnerID:   partnerID,
			CandidateID: user.ID,
			BatchID:     batchID,
			IsPaidFor:   paid,
		})
		if err != nil {
			return fmt.Errorf("create partner link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return user, link, nil
}

type createdCandidate struct {
	user *model.User
	link *model.PartnerCandidate
}

// afterCreate runs the follow-up work for newly created candidates.
func (s *CandidateService) afterCreate(ctx context.Context, partnerID string, created []createdCandidate) []Warning {
	profile, profileErr := s.partners.FindProfile(ctx, partnerID)

	return runPostCommit(ctx, partnerID, []postCommitTask{
		{
			name: TaskPartnerOnboarding,
			run: func(ctx context.Context) error {
				first, err := s.partners.MarkFirstCandidateAdded(ctx, partnerID)
				if err != nil {
					return err
				}
				if first {
					log.Info().Str("partnerId", partnerID).Msg("partner added first candidate")
				}
				return nil
			},
		},
		{
			name: TaskExamEnrollment,
			run: func(ctx context.Context) error {
				if profileErr != nil {
					return fmt.Errorf("find partner profile: %w", profileErr)
				}
				if profile == nil || len(profile.ExamTypes) == 0 {
					return nil
				}
				examDate := examDateFrom(s.now(), config.DefaultExamDateOffsetMonths)
				var errs []error
				for _, c := range created {
					user := c.user
					for _, examID := range profile.ExamTypes {
						_, err := s.enrollments.EnrollIfAbsent(ctx, EnrollInput{
							UserID:            user.ID,
							ExamID:            examID,
							PracticeFrequency: config.DefaultPracticeFrequency,
							ExamDate:          examDate,
						})
						if err != nil {
							errs = append(errs, fmt.Errorf("%s in %s: %w", user.Email, examID, err))
						}
					}
				}
				return errors.Join(errs...)
			},
		},
		{
			name: TaskInvitation,
			run: func(ctx context.Context) error {
				partnerName := ""
				if profile != nil {
					partnerName = profile.OrganizationName
				}
				var failed []string
				for _, c := range created {
					if err := s.sendInvitation(ctx, partnerName, c.user, c.link); err != nil {
						log.Warn().Err(err).Str("candidateId", c.user.ID).Msg("invitation failed")
						failed = append(failed, c.user.Email)
					}
				}
				if len(failed) > 0 {
					return fmt.Errorf("invitation not sent to %d candidate(s): %s", len(failed), strings.Join(failed, ", "))
				}
				return nil
			},
		},
	})
}

// sendInvitation issues a fresh token for the link and mails it. The send
// time becomes the link's invite_sent_at, which drives expiry.
func (s *CandidateService) sendInvitation(ctx context.Context, partnerName string, user *model.User, link *model.PartnerCandidate) error {
	token, tokenHash, err := util.NewInviteToken()
	if err != nil {
		return fmt.Errorf("generate invite token: %w", err)
	}
	partnerID := link.PartnerID
	now := s.now()
	expiresAt := now.Add(s.config.InviteTokenTTL)

	updated, err := s.links.SetInviteToken(ctx, link.ID, tokenHash, expiresAt, now)
	if err != nil {
		return fmt.Errorf("store invite token: %w", err)
	}
	if updated == nil {
		return fmt.Errorf("invitation for link %s is no longer pending", link.ID)
	}

	if s.mailer == nil {
		return nil
	}
	err = s.mailer.SendInvitation(ctx, mailer.Invitation{
		ToEmail:     user.Email,
		ToName:      strings.TrimSpace(user.Firstname + " " + user.Lastname),
		PartnerName: partnerName,
		AcceptURL:   s.acceptURL(partnerID, user.ID, token),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return err
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventInviteSent,
		ActorID:   partnerID,
		PartnerID: partnerID,
		Details:   map[string]any{"candidateId": user.ID, "linkId": link.ID, "email": util.MaskEmail(user.Email)},
	})
	return nil
}

func (s *CandidateService) acceptURL(partnerID, candidateID, token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("partner_id", partnerID)
	return fmt.Sprintf("%s/candidates/%s/accept-invite?%s",
		strings.TrimRight(s.config.AppBaseURL, "/"), candidateID, q.Encode())
}

// storeUpload keeps the raw file for audit. Returns the stored key, or a
// warning when the store is unavailable.
func (s *CandidateService) storeUpload(ctx context.Context, partnerID string, content []byte) (*string, *Warning) {
	key := fmt.Sprintf("candidate-uploads/%s/%s-%s.csv",
		partnerID, s.now().UTC().Format("20060102T150405Z"), uuid.NewString())

	uri, err := s.store.Put(ctx, key, content, "text/csv")
	if err != nil {
		log.Warn().Err(err).Str("partnerId", partnerID).Str("key", key).Msg("failed to store csv upload")
		metrics.PostCommitFailures.WithLabelValues(TaskObjectStorage).Inc()
		return nil, &Warning{Task: TaskObjectStorage, Message: err.Error()}
	}
	if uri == "" {
		return nil, nil
	}
	return &key, nil
}

func validateCandidateFields(firstname, lastname, email string) (string, string, string, error) {
	firstname = strings.TrimSpace(firstname)
	lastname = strings.TrimSpace(lastname)
	email = util.NormalizeEmail(email)

	switch {
	case firstname == "":
		return "", "", "", apperrors.MissingRequired("firstname")
	case lastname == "":
		return "", "", "", apperrors.MissingRequired("lastname")
	case email == "":
		return "", "", "", apperrors.MissingRequired("email")
	}
	if len(firstname) > maxNameLength || len(lastname) > maxNameLength {
		return "", "", "", apperrors.InvalidInput("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}
	if !util.IsValidEmail(email) {
		return "", "", "", apperrors.InvalidInput("email", "invalid email format")
	}
	return firstname, lastname, email, nil
}

func candidateView(user *model.User, link *model.PartnerCandidate) *model.CandidateView {
	return &model.CandidateView{
		LinkID:           link.ID,
		CandidateID:      user.ID,
		Firstname:        user.Firstname,
		Lastname:         user.Lastname,
		Email:            user.Email,
		BatchID:          link.BatchID,
		IsPaidFor:        link.IsPaidFor,
		InviteStatus:     link.InviteStatus,
		InviteSentAt:     link.InviteSentAt,
		InviteAcceptedAt: link.InviteAcceptedAt,
	}
}

func batchIDOf(batch *model.CandidateBatch) *string {
	if batch == nil {
		return nil
	}
	return &batch.ID
}
