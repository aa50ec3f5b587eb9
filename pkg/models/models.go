package models

import (
	"strings"
	"time"

	"github.com/kindnest/kindnest-api/pkg/availability"
)

// Role names carried in session tokens.
const (
	RoleDonor     = "donor"
	RoleAdmin     = "admin"
	RoleVolunteer = "volunteer"
)

// DriverRole is the volunteer role preferred when ordering pickup candidates.
const DriverRole = "Pickup Driver"

// Need categories.
const (
	CategoryClothes = "clothes"
	CategoryFood    = "food"
	CategoryToys    = "toys"
	CategoryOther   = "other"
)

// ValidCategory reports whether c is a known need/inventory category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryClothes, CategoryFood, CategoryToys, CategoryOther:
		return true
	}
	return false
}

type NeedStatus string

const (
	NeedActive    NeedStatus = "active"
	NeedCompleted NeedStatus = "completed"
	NeedPaused    NeedStatus = "paused"
)

// Need is a published request for money or items.
type Need struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"not null" json:"description"`
	Category    string     `gorm:"size:20;not null" json:"category"`
	Goal        int        `gorm:"not null" json:"goal"`
	Current     int        `gorm:"not null;default:0" json:"current"`
	Urgent      bool       `gorm:"not null;default:false" json:"urgent"`
	NGO         string     `gorm:"column:ngo" json:"ngo"`
	Status      NeedStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Remaining is how many more items the need accepts.
func (n *Need) Remaining() int { return n.Goal - n.Current }

type DonationType string

const (
	DonationMoney    DonationType = "money"
	DonationPhysical DonationType = "physical"
)

type DeliveryMethod string

const (
	DeliveryDropOff DeliveryMethod = "drop-off"
	DeliveryPickup  DeliveryMethod = "pickup"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationConfirmed DonationStatus = "confirmed"
	DonationCompleted DonationStatus = "completed"
	DonationRejected  DonationStatus = "rejected"
)

// Donation is a donor's pledge against a need.
type Donation struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	DonorID         string         `gorm:"type:varchar(36);index;not null" json:"donor_id"`
	NeedID          string         `gorm:"type:varchar(36);index;not null" json:"need_id"`
	Type            DonationType   `gorm:"size:20;not null" json:"type"`
	Amount          float64        `json:"amount,omitempty"`
	Items           string         `json:"items,omitempty"`
	Quantity        int            `json:"quantity,omitempty"`
	DeliveryMethod  DeliveryMethod `gorm:"size:20" json:"delivery_method,omitempty"`
	Status          DonationStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleConfirmed ScheduleStatus = "confirmed"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// Schedule is the pickup or drop-off appointment for one physical donation.
type Schedule struct {
	ID                  string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	DonationID          string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"donation_id"`
	DonorID             string         `gorm:"type:varchar(36);index;not null" json:"donor_id"`
	Type                DeliveryMethod `gorm:"size:20;not null" json:"type"`
	Date                time.Time      `gorm:"not null;index" json:"date"`
	Time                string         `gorm:"size:5;not null" json:"time"`
	Address             string         `json:"address,omitempty"`
	Phone               string         `json:"phone,omitempty"`
	Status              ScheduleStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	AssignedVolunteerID *string        `gorm:"type:varchar(36);index" json:"assigned_volunteer_id,omitempty"`
	OTP                 *string        `gorm:"column:otp;size:6" json:"-"`
	OTPVerified         bool           `gorm:"column:otp_verified;not null;default:false" json:"otp_verified"`
	Notes               string         `json:"notes,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// CodeIssued reports whether a verification code was ever issued.
func (s *Schedule) CodeIssued() bool { return s.OTP != nil && *s.OTP != "" }

// AssignedTo reports whether volunteerID is the schedule's current volunteer.
func (s *Schedule) AssignedTo(volunteerID string) bool {
	return s.AssignedVolunteerID != nil && volunteerID != "" && *s.AssignedVolunteerID == volunteerID
}

// DateString returns the schedule date as YYYY-MM-DD.
func (s *Schedule) DateString() string { return s.Date.Format(DateLayout) }

// DateLayout is the wire format of schedule dates.
const DateLayout = "2006-01-02"

type VolunteerStatus string

const (
	VolunteerPending  VolunteerStatus = "pending"
	VolunteerActive   VolunteerStatus = "active"
	VolunteerInactive VolunteerStatus = "inactive"
)

// Volunteer is a field volunteer. Availability keeps the text the volunteer
// entered; the Avail* columns hold its parsed form, written alongside it.
type Volunteer struct {
	ID           string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string          `gorm:"not null" json:"name"`
	Phone        string          `gorm:"uniqueIndex;not null" json:"phone"`
	Email        *string         `gorm:"uniqueIndex" json:"email,omitempty"`
	Role         string          `gorm:"not null" json:"role"`
	Availability string          `json:"availability"`
	AvailDays    int             `gorm:"not null;default:0" json:"-"`
	AvailStart   int             `gorm:"not null;default:0" json:"-"`
	AvailEnd     int             `gorm:"not null;default:0" json:"-"`
	AvailValid   bool            `gorm:"not null;default:false" json:"availability_valid"`
	Address      string          `json:"address,omitempty"`
	Motivation   string          `json:"motivation,omitempty"`
	Status       VolunteerStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	JoinedAt     time.Time       `gorm:"autoCreateTime" json:"joined_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SetAvailability stores text and its parsed form. Text that does not parse
// is kept for display but marks the volunteer as never available.
func (v *Volunteer) SetAvailability(text string) error {
	v.Availability = strings.TrimSpace(text)
	a, err := availability.Parse(v.Availability)
	if err != nil {
		v.AvailDays, v.AvailStart, v.AvailEnd, v.AvailValid = 0, 0, 0, false
		return err
	}
	v.AvailDays = int(a.Days)
	v.AvailStart = a.StartMinutes
	v.AvailEnd = a.EndMinutes
	v.AvailValid = true
	return nil
}

// ParsedAvailability returns the stored structured availability.
func (v *Volunteer) ParsedAvailability() (availability.Availability, bool) {
	if !v.AvailValid {
		return availability.Availability{}, false
	}
	return availability.Availability{
		Days:         availability.Days(v.AvailDays),
		StartMinutes: v.AvailStart,
		EndMinutes:   v.AvailEnd,
	}, true
}

// NormalizeEmail maps blank and "n/a" entries to nil so the unique index
// only applies to real addresses.
func NormalizeEmail(email string) *string {
	e := strings.TrimSpace(email)
	if e == "" || strings.EqualFold(e, "n/a") {
		return nil
	}
	return &e
}

// User is a donor or admin account.
type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"size:20;not null;default:'donor'" json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InventoryItem is stock held at one location.
type InventoryItem struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"not null;uniqueIndex:idx_inventory_name_location" json:"name"`
	Category    string    `gorm:"size:20;not null" json:"category"`
	Quantity    int       `gorm:"not null;default:0" json:"quantity"`
	Location    string    `gorm:"not null;uniqueIndex:idx_inventory_name_location" json:"location"`
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"last_updated"`
}

// ResolveContact picks the phone number for a schedule: the number given
// with the schedule first, then the donor's profile number.
func ResolveContact(schedulePhone, profilePhone string) string {
	if p := strings.TrimSpace(schedulePhone); p != "" {
		return p
	}
	return strings.TrimSpace(profilePhone)
}
