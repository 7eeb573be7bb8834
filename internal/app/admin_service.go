package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"mathtutor/internal/model"
)

// StudentLister is the slice of the user repository the admin surface needs.
type StudentLister interface {
	ListAll() ([]model.User, error)
}

// AdminService exposes student records to the administrator surface.
type AdminService struct {
	userRepo StudentLister
}

func NewAdminService(userRepo StudentLister) *AdminService {
	return &AdminService{userRepo: userRepo}
}

// StudentRecord is the admin-facing view of one student.
type StudentRecord struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Level    string `json:"level"`
	Lydo     string `json:"lydo"`
	History  string `json:"history"`
}

func (s *AdminService) ListStudents() ([]StudentRecord, error) {
	users, err := s.userRepo.ListAll()
	if err != nil {
		return nil, err
	}
	records := make([]StudentRecord, len(users))
	for i, u := range users {
		records[i] = toRecord(u)
	}
	return records, nil
}

// ExportCSV writes all student records as CSV with a UTF-8 BOM so
// spreadsheet tools render Vietnamese text correctly.
func (s *AdminService) ExportCSV(w io.Writer) error {
	users, err := s.userRepo.ListAll()
	if err != nil {
		return err
	}

	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write csv bom failed: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Username", "Name", "Level", "Lydo", "History"}); err != nil {
		return fmt.Errorf("write csv header failed: %w", err)
	}
	for _, u := range users {
		rec := toRecord(u)
		row := []string{
			strconv.FormatUint(uint64(rec.ID), 10),
			rec.Username,
			rec.Name,
			rec.Level,
			rec.Lydo,
			rec.History,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row failed: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func toRecord(u model.User) StudentRecord {
	name := u.Name
	if name == "" {
		name = "Chưa đặt tên"
	}
	history := u.History
	if history == "" {
		history = "Chưa có lịch sử"
	}
	return StudentRecord{
		ID:       u.ID,
		Username: u.Username,
		Name:     name,
		Level:    u.Level,
		Lydo:     u.Lydo,
		History:  history,
	}
}
