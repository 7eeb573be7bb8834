package model

// EvalJob asks the evaluation worker to reclassify one student.
type EvalJob struct {
	UserID uint `json:"user_id"`
}
