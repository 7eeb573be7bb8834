package model

// Proficiency levels, strongest to weakest.
const (
	LevelGioi = "Gioi"
	LevelKha  = "Kha"
	LevelTB   = "TB"
	LevelYeu  = "Yeu"
)

// DefaultLevel is assigned on registration and whenever classification
// produces an unrecognized label.
const DefaultLevel = LevelTB

func ValidLevel(level string) bool {
	switch level {
	case LevelGioi, LevelKha, LevelTB, LevelYeu:
		return true
	}
	return false
}
