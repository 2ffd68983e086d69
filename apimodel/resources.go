package apimodel

import "time"

type Medication struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Dosage      *string    `json:"dosage"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

type CreateMedicationRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Dosage      *string `json:"dosage,omitempty"`
}

type UpdateMedicationRequest = CreateMedicationRequest

type Intake struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	MedicationID   string     `json:"medicationId"`
	MedicationName string     `json:"medicationName"`
	IntakeTime     time.Time  `json:"intakeTime"`
	Notes          *string    `json:"notes"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

type CreateIntakeRequest struct {
	MedicationID string     `json:"medicationId"`
	IntakeTime   *time.Time `json:"intakeTime,omitempty"` // defaults to now on the server
	Notes        *string    `json:"notes,omitempty"`
}

type UpdateIntakeRequest struct {
	IntakeTime time.Time `json:"intakeTime"`
	Notes      *string   `json:"notes,omitempty"`
}

// IntakeFilter narrows GET /users/{id}/intakes; zero fields are not sent.
type IntakeFilter struct {
	FromDate     *time.Time
	ToDate       *time.Time
	MedicationID string
}

type Reminder struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	TelegramUserID int64      `json:"telegramUserId"`
	MedicationID   string     `json:"medicationId"`
	MedicationName string     `json:"medicationName"`
	Dosage         *string    `json:"dosage"`
	Time           string     `json:"time"` // "HH:mm"
	IsActive       bool       `json:"isActive"`
	LastSentAt     *time.Time `json:"lastSentAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

type CreateReminderRequest struct {
	TelegramUserID int64  `json:"telegramUserId"` // 0 for web-only accounts
	MedicationID   string `json:"medicationId"`
	Time           string `json:"time"`
}

type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UpdateTimeZoneRequest struct {
	TimeZoneID string `json:"timeZoneId"`
}
