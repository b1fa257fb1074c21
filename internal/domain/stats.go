package domain

// AnswerTally counts a user's answers to one question across all attempts.
type AnswerTally struct {
	Answered int
	Correct  int
}

// TopicStat summarises one topic on the dashboard.
type TopicStat struct {
	TopicID       int64   `json:"topicId"`
	TopicName     string  `json:"topicName"`
	QuestionCount int     `json:"questionCount"`
	Answered      int     `json:"answered"`
	Correct       int     `json:"correct"`
	Accuracy      float64 `json:"accuracy"`
}

// DashboardStats aggregates a user's question pool and answering record.
type DashboardStats struct {
	TotalQuestions  int            `json:"totalQuestions"`
	TotalAttempts   int            `json:"totalAttempts"`
	TotalAnswers    int            `json:"totalAnswers"`
	CorrectAnswers  int            `json:"correctAnswers"`
	OverallAccuracy float64        `json:"overallAccuracy"`
	Topics          []TopicStat    `json:"topics"`
	ByType          map[string]int `json:"byType"`
	ByDifficulty    map[string]int `json:"byDifficulty"`
	RecentAttempts  []HistoryEntry `json:"recentAttempts"`
}

// QuestionTypes lists every question type in display order.
var QuestionTypes = []QuestionType{MultipleChoice, TrueFalse, CommentedPhrase, Flashcard}

// Difficulties lists every difficulty in display order.
var Difficulties = []Difficulty{Easy, Medium, Hard}
