package model

import (
	"time"
)

type ExamEnrollment struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	ExamID            string    `db:"exam_id" json:"exam_id"`
	PracticeFrequency string    `db:"practice_frequency" json:"practice_frequency"`
	ExamDate          time.Time `db:"exam_date" json:"exam_date"`
	JoinedAt          time.Time `db:"joined_at" json:"joined_at"`
}

type CreateEnrollmentParams struct {
	UserID            string
	ExamID            string
	PracticeFrequency string
	ExamDate          time.Time
}

type Exam struct {
	ID        string    `db:"id" json:"exam_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
