package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// QuestionType discriminates how a question is answered and graded.
type QuestionType string

const (
	QuestionSingleChoice    QuestionType = "single_choice"
	QuestionFreeText        QuestionType = "free_text"
	QuestionOrderedSequence QuestionType = "ordered_sequence"
)

// Quiz is the read-only content a submission is graded against.
// Authoring happens elsewhere; this subsystem never mutates it.
type Quiz struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID              int64      `bun:"id,pk" json:"id"`
	Title           string     `bun:"title" json:"title"`
	LevelID         int64      `bun:"level_id" json:"levelId"` // 0 = no level, multiplier defaults to 1.0
	CategoryID      int64      `bun:"category_id" json:"categoryId"`
	DurationMinutes int        `bun:"duration_minutes" json:"durationMinutes"` // 0 = untimed
	PassScore       int        `bun:"pass_score" json:"passScore"`
	Questions       []Question `bun:"-" json:"questions"`
}

// Question belongs to exactly one quiz.
type Question struct {
	bun.BaseModel `bun:"table:questions,alias:qs"`

	ID      int64        `bun:"id,pk" json:"id"`
	QuizID  int64        `bun:"quiz_id" json:"quizId"`
	Body    string       `bun:"body" json:"body"`
	Type    QuestionType `bun:"type" json:"type"`
	Answers []Answer     `bun:"-" json:"answers"`
}

// Answer is one candidate answer for a question. For ordered-sequence
// questions OrderPosition holds the canonical 1-based position.
type Answer struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID            int64  `bun:"id,pk" json:"id"`
	QuestionID    int64  `bun:"question_id" json:"questionId"`
	Content       string `bun:"content" json:"content"`
	Correct       bool   `bun:"is_correct" json:"correct"`
	OrderPosition int    `bun:"order_position" json:"orderPosition"`
}

// ResponseInput is one submitted response inside a batch. Exactly one of
// AnswerID, FreeText, UserOrder must be set, matching the question type.
type ResponseInput struct {
	QuestionID       int64   `json:"questionId"`
	AnswerID         *int64  `json:"answerId,omitempty"`
	FreeText         *string `json:"freeText,omitempty"`
	UserOrder        []int64 `json:"userOrder,omitempty"`
	TimeTakenSeconds int     `json:"timeTakenSeconds,omitempty"`
}

// QuestionResponse is the durable record of one graded response. Rows are
// append-only; corrections are new submissions, never updates.
type QuestionResponse struct {
	bun.BaseModel `bun:"table:question_responses,alias:qr"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	QuizID       int64     `bun:"quiz_id" json:"quizId"`
	UserID       *int64    `bun:"user_id" json:"userId,omitempty"` // nil = guest
	GuestSession string    `bun:"guest_session,nullzero" json:"guestSession,omitempty"`
	QuestionID   int64     `bun:"question_id" json:"questionId"`
	AnswerID     *int64    `bun:"answer_id" json:"answerId,omitempty"`
	UserAnswer   string    `bun:"user_answer,nullzero" json:"userAnswer,omitempty"`
	IsCorrect    bool      `bun:"is_correct" json:"isCorrect"`
	Points       int       `bun:"points" json:"points"`
	ResponseTime int       `bun:"response_time" json:"responseTime"`
	CreatedAt    time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt"`
}

// Score holds the points awarded for one graded attempt. A user's cumulative
// score is the sum of their rows; rows are never updated in place.
type Score struct {
	bun.BaseModel `bun:"table:scores,alias:s"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id" json:"userId"`
	QuizID    int64     `bun:"quiz_id" json:"quizId"`
	Score     int       `bun:"score" json:"score"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt"`
}

// QuizAttempt keeps the raw correctness counts of one submission event,
// independent of the points formula.
type QuizAttempt struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id" json:"userId"`
	QuizID    int64     `bun:"quiz_id" json:"quizId"`
	Score     int       `bun:"score" json:"score"`
	MaxScore  int       `bun:"max_score" json:"maxScore"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt"`
}

// User carries the denormalized leaderboard position. Ranking is a cache of a
// pure function over Score rows and is written only by the ranking engine.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64  `bun:"id,pk" json:"id"`
	Username       string `bun:"username" json:"username"`
	OrganizationID int64  `bun:"organization_id" json:"organizationId"`
	Ranking        *int   `bun:"ranking" json:"ranking,omitempty"`
}

// ResponseVerdict is the per-question outcome returned to the submitter.
type ResponseVerdict struct {
	QuestionID int64             `json:"questionId"`
	IsCorrect  bool              `json:"isCorrect"`
	Sequence   *SequenceFeedback `json:"sequence,omitempty"`
}

// SubmissionResult summarizes one graded batch. Score/Total are raw
// correctness counts; weighted points live in Breakdown.
type SubmissionResult struct {
	Score     int               `json:"score"`
	Total     int               `json:"total"`
	Results   []ResponseVerdict `json:"results"`
	Breakdown *PointsBreakdown  `json:"breakdown,omitempty"` // nil for guests
}

// SequencePosition compares one slot of a submitted permutation against the
// canonical order.
type SequencePosition struct {
	UserAnswer    int64 `json:"userAnswer"`
	CorrectAnswer int64 `json:"correctAnswer"`
	IsCorrect     bool  `json:"isCorrect"`
}

// SequenceItem is one entry of the canonical order with its content, so a UI
// can render a diff without extra queries.
type SequenceItem struct {
	AnswerID int64  `json:"answerId"`
	Position int    `json:"position"`
	Content  string `json:"content"`
}

// SequenceFeedback is the per-position grading detail for an
// ordered-sequence question.
type SequenceFeedback struct {
	Score        int                `json:"score"`
	MaxScore     int                `json:"maxScore"`
	IsCorrect    bool               `json:"isCorrect"`
	Positions    []SequencePosition `json:"positions"`
	CorrectOrder []SequenceItem     `json:"correctOrder"`
}

// PointsBreakdown is the user-facing points calculation. It echoes its inputs
// so the total is reproducible from the breakdown alone.
type PointsBreakdown struct {
	BasePoints       int     `json:"basePoints"`
	LevelMultiplier  float64 `json:"levelMultiplier"`
	LevelPoints      float64 `json:"levelPoints"`
	PerformanceBonus int     `json:"performanceBonus"`
	SpeedBonus       int     `json:"speedBonus"`
	TotalPoints      int     `json:"totalPoints"`

	CorrectCount     int     `json:"correctCount"`
	TotalCount       int     `json:"totalCount"`
	SuccessRate      float64 `json:"successRate"` // percent, rounded to 2 decimals
	QuizLevel        int64   `json:"quizLevel"`
	TimeSpentSeconds *int    `json:"timeSpentSeconds,omitempty"`
	DurationMinutes  int     `json:"durationMinutes"`
}

// UserTotal is one row of the aggregated score sums the ranking engine
// consumes.
type UserTotal struct {
	UserID     int64 `bun:"user_id"`
	TotalScore int64 `bun:"total_score"`
}

// UserRank pairs a user with their freshly computed competition rank.
type UserRank struct {
	UserID int64
	Rank   int
}

// LeaderboardScope selects which score rows a leaderboard aggregates.
type LeaderboardScope string

const (
	ScopeGlobal       LeaderboardScope = "global"
	ScopeCategory     LeaderboardScope = "category"
	ScopeOrganization LeaderboardScope = "organization"
)

// LeaderboardQuery parameterizes one leaderboard read.
type LeaderboardQuery struct {
	Scope   LeaderboardScope
	ScopeID int64 // category or organization id, unused for global
	Limit   int
	Page    int // 1-based
	Desc    bool
}

// LeaderboardRow is one aggregated leaderboard entry.
type LeaderboardRow struct {
	UserID           int64  `bun:"user_id" json:"userId"`
	Username         string `bun:"username" json:"username"`
	TotalScore       int64  `bun:"total_score" json:"totalScore"`
	QuizzesCompleted int    `bun:"quizzes_completed" json:"quizzesCompleted"`
	Ranking          *int   `bun:"ranking" json:"ranking,omitempty"`
	Position         int    `bun:"-" json:"position"` // dense page position, not the persisted rank
}

// LeaderboardPage is a paginated leaderboard view.
type LeaderboardPage struct {
	Data       []LeaderboardRow `json:"data"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalUsers int              `json:"totalUsers"`
}
