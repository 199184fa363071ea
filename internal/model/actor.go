package model

import "github.com/google/uuid"

// Role identifies which staff function an authenticated user performs.
// Identities are issued by the external identity provider; this core
// only reads them.
type Role string

const (
	RolePatient      Role = "patient"
	RoleDoctor       Role = "doctor"
	RolePharmacist   Role = "pharmacist"
	RoleReceptionist Role = "receptionist"
	RoleLabAssistant Role = "lab_assistant"
	RoleAdmin        Role = "admin"
)

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
