package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Match is one occurrence of the weekly community session
type Match struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SessionDate      time.Time `gorm:"type:date;index" json:"session_date"`
	ShuttlecocksUsed int       `json:"shuttlecocks_used"`
	Location         string    `gorm:"type:varchar(255)" json:"location"`

	Attendances []MatchAttendance `gorm:"foreignKey:MatchID" json:"attendances,omitempty"`
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// MemberIDs returns the roster in attendance order
func (m Match) MemberIDs() []string {
	ids := make([]string, 0, len(m.Attendances))
	for _, a := range m.Attendances {
		ids = append(ids, a.MemberID)
	}
	return ids
}

// MatchAttendance marks a member as present at a match
type MatchAttendance struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	MatchID  string `gorm:"type:uuid;uniqueIndex:idx_attendance_match_member,priority:1" json:"match_id"`
	MemberID string `gorm:"type:uuid;uniqueIndex:idx_attendance_match_member,priority:2" json:"member_id"`
}
