package core

import (
	"time"

	"github.com/google/uuid"
)

// SymptomEntry is a captured symptom payload submitted for a patient.
type SymptomEntry struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	PatientID uuid.UUID      `json:"patient_id"`
	Payload   map[string]any `json:"symptoms"`
	CreatedAt time.Time      `json:"created_at"`
}

// Prediction is a (stubbed) model score derived from a symptom entry.
type Prediction struct {
	ID             uuid.UUID `json:"id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	SymptomEntryID uuid.UUID `json:"symptom_entry_id"`
	ModelVersion   string    `json:"model_version"`
	Score          float64   `json:"score"`
	Label          string    `json:"label"`
	CreatedAt      time.Time `json:"created_at"`
}

// Case is a care case assigned to a health professional.
type Case struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
