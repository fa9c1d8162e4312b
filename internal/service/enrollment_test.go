package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/partner-server-go/internal/config"
	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/model"
)

func candidateUser(t *testing.T, e *env, email string) string {
	t.Helper()
	u, err := e.users.Create(context.Background(), model.CreateUserParams{
		Email: email, Firstname: "Ada", Lastname: "Obi", AccountType: model.AccountTypeCandidate,
	})
	require.NoError(t, err)
	return u.ID
}

func TestEnrollmentService_Enroll(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults and rewards the first enrollment once", func(t *testing.T) {
		e := newEnv(t, config.SeatReservationAtomic)
		e.addExam("ielts")
		e.addExam("toefl")
		userID := candidateUser(t, e, "ada@example.com")

		first, err := e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "ielts"})
		require.NoError(t, err)
		assert.Equal(t, config.DefaultPracticeFrequency, first.PracticeFrequency)
		assert.False(t, first.ExamDate.IsZero())

		_, err = e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "toefl", PracticeFrequency: "5"})
		require.NoError(t, err)

		user := e.st.users[userID]
		assert.True(t, user.FirstEnrollmentRewarded)
		assert.Equal(t, config.FirstEnrollmentBonusSeconds, user.PracticeSeconds)

		notes, err := e.notifications.List(ctx, userID, 10, 0)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, model.NotificationFirstEnrollmentBonus, notes[0].Type)

		events := e.publisher.events[userID]
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeNotification, events[0].Type)
		var payload model.Notification
		require.NoError(t, json.Unmarshal(events[0].Data, &payload))
		assert.Equal(t, notes[0].ID, payload.ID)
	})

	t.Run("duplicate enrollment already exists", func(t *testing.T) {
		e := newEnv(t, config.SeatReservationAtomic)
		e.addExam("ielts")
		userID := candidateUser(t, e, "ada@example.com")

		_, err := e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "ielts"})
		require.NoError(t, err)

		_, err = e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "ielts"})
		assertCode(t, err, apperrors.ErrCodeAlreadyExists)
	})

	t.Run("concurrent duplicate maps to already exists", func(t *testing.T) {
		e := newEnv(t, config.SeatReservationAtomic)
		e.addExam("ielts")
		userID := candidateUser(t, e, "ada@example.com")

		_, err := e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "ielts"})
		require.NoError(t, err)

		e.enrollRepo.hideExisting = true
		_, err = e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "ielts"})
		assertCode(t, err, apperrors.ErrCodeAlreadyExists)
	})

	t.Run("validates input", func(t *testing.T) {
		e := newEnv(t, config.SeatReservationAtomic)
		e.addExam("ielts")
		userID := candidateUser(t, e, "ada@example.com")

		_, err := e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "unknown"})
		assertCode(t, err, apperrors.ErrCodeNotFound)

		_, err = e.enrollments.Enroll(ctx, EnrollInput{UserID: userID})
		assertCode(t, err, apperrors.ErrCodeMissingRequired)

		for _, freq := range []string{"0", "8", "daily"} {
			_, err = e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "ielts", PracticeFrequency: freq})
			assertCode(t, err, apperrors.ErrCodeInvalidInput)
		}
	})

	t.Run("keeps an explicit exam date", func(t *testing.T) {
		e := newEnv(t, config.SeatReservationAtomic)
		e.addExam("ielts")
		userID := candidateUser(t, e, "ada@example.com")
		date := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)

		got, err := e.enrollments.Enroll(ctx, EnrollInput{UserID: userID, ExamID: "ielts", ExamDate: date})
		require.NoError(t, err)
		assert.True(t, got.ExamDate.Equal(date))
	})
}

func TestEnrollmentService_EnrollIfAbsent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, config.SeatReservationAtomic)
	e.addExam("ielts")
	userID := candidateUser(t, e, "ada@example.com")
	in := EnrollInput{UserID: userID, ExamID: "ielts"}

	created, err := e.enrollments.EnrollIfAbsent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = e.enrollments.EnrollIfAbsent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)

	e.enrollRepo.hideExisting = true
	created, err = e.enrollments.EnrollIfAbsent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)

	list, err := e.enrollments.ListEnrollments(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	found, err := e.enrollments.GetUserExamEnrollment(ctx, uuid.NewString(), "ielts")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestNotificationService(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, config.SeatReservationAtomic)
	userID := candidateUser(t, e, "ada@example.com")

	n, err := e.notifications.Notify(ctx, model.CreateNotificationParams{
		UserID: userID, Type: model.NotificationFirstEnrollmentBonus, Title: "Hi", Body: "There",
	})
	require.NoError(t, err)
	assert.Len(t, e.publisher.events[userID], 1)

	read, err := e.notifications.MarkRead(ctx, userID, n.ID)
	require.NoError(t, err)
	assert.NotNil(t, read.ReadAt)

	_, err = e.notifications.MarkRead(ctx, uuid.NewString(), n.ID)
	assertCode(t, err, apperrors.ErrCodeNotFound)

	_, err = e.notifications.MarkRead(ctx, userID, "nope")
	assertCode(t, err, apperrors.ErrCodeNotFound)

	empty, err := e.notifications.List(ctx, uuid.NewString(), 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestPartnerService(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, config.SeatReservationAtomic)
	e.addExam("ielts")
	e.addExam("toefl")

	t.Run("profile for unknown partner is empty", func(t *testing.T) {
		p, err := e.partnerSvc.Profile(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, p.ExamTypes)
		assert.False(t, p.AddedFirstCandidate)
	})

	t.Run("updates exam types without duplicates", func(t *testing.T) {
		p, err := e.partnerSvc.UpdateExamTypes(ctx, e.partnerID, []string{"ielts", " toefl ", "ielts", ""})
		require.NoError(t, err)
		assert.Equal(t, []string{"ielts", "toefl"}, []string(p.ExamTypes))

		p, err = e.partnerSvc.UpdateExamTypes(ctx, e.partnerID, nil)
		require.NoError(t, err)
		assert.Empty(t, p.ExamTypes)
	})

	t.Run("rejects unknown exams", func(t *testing.T) {
		_, err := e.partnerSvc.UpdateExamTypes(ctx, e.partnerID, []string{"ielts", "gre"})
		assertCode(t, err, apperrors.ErrCodeValidation)

		appErr, _ := apperrors.AsAppError(err)
		assert.Equal(t, map[string]any{"unknownExamTypes": []string{"gre"}}, appErr.Details)
	})

	t.Run("lists exams", func(t *testing.T) {
		exams, err := e.partnerSvc.ListExams(ctx)
		require.NoError(t, err)
		assert.Len(t, exams, 2)
	})
}
