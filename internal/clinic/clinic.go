package clinic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Settings is the per-clinic configuration blob stored as JSON.
type Settings struct {
	Departments     []string            `json:"departments"`
	Specialties     []string            `json:"specialties"`
	WeeklyTimings   map[string]DayHours `json:"weekly_timings"`
	RolePermissions map[string][]string `json:"role_permissions"`
}

type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

func defaultSettings() Settings {
	timings := make(map[string]DayHours, 7)
	for _, day := range []string{"mon", "tue", "wed", "thu", "fri"} {
		timings[day] = DayHours{Open: "09:00", Close: "17:00"}
	}
	for _, day := range []string{"sat", "sun"} {
		timings[day] = DayHours{Closed: true}
	}
	return Settings{
		Departments:   []string{"General"},
		Specialties:   []string{"General Practice"},
		WeeklyTimings: timings,
		RolePermissions: map[string][]string{
			models.RoleAdmin:        {"*"},
			models.RoleDoctor:       {"patients", "appointments", "labs", "referrals"},
			models.RoleReceptionist: {"appointments", "billing"},
		},
	}
}

// Service manages the tenant boundary rows.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// EnsureForAdmin lazily assigns an admin exactly one clinic. Idempotent: an
// existing owned clinic is reused and the user's clinic id is never
// reassigned. Non-admin users are left untouched.
func (s *Service) EnsureForAdmin(user *models.User) error {
	if user.Role != models.RoleAdmin {
		return nil
	}

	var existing models.Clinic
	err := s.db.Where("owner_user_id = ?", user.ID).First(&existing).Error
	if err == nil {
		return s.attach(user, existing.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up clinic: %w", err)
	}

	settings, err := json.Marshal(defaultSettings())
	if err != nil {
		return fmt.Errorf("failed to encode clinic settings: %w", err)
	}

	name := strings.Split(user.Email, "@")[0] + "'s Clinic"
	created := models.Clinic{
		ID:           uuid.New(),
		Name:         name,
		Timezone:     "UTC",
		ContactEmail: user.Email,
		Settings:     datatypes.JSON(settings),
		OwnerUserID:  user.ID,
	}
	if err := s.db.Create(&created).Error; err != nil {
		// Concurrent first-admin-action: the unique owner index makes the
		// loser re-read the winner's row.
		if lookupErr := s.db.Where("owner_user_id = ?", user.ID).First(&existing).Error; lookupErr == nil {
			return s.attach(user, existing.ID)
		}
		return fmt.Errorf("failed to create clinic: %w", err)
	}

	return s.attach(user, created.ID)
}

func (s *Service) attach(user *models.User, clinicID uuid.UUID) error {
	if user.ClinicID != nil {
		return nil
	}
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("clinic_id", clinicID).Error; err != nil {
		return fmt.Errorf("failed to assign clinic: %w", err)
	}
	user.ClinicID = &clinicID
	return nil
}

// ForClinic returns a GORM scope that filters by clinic_id.
func ForClinic(clinicID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("clinic_id = ?", clinicID)
	}
}
