package model

import "github.com/google/uuid"

// Client, Operator and PaymentTerms are owned by the catalog screens and
// only read here.
type Client struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	TaxID   string    `json:"tax_id"`
	Address string    `json:"address"`
	Phone   string    `json:"phone"`
	Email   string    `json:"email"`
}

type Operator struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Active   bool      `json:"active"`
}

type PaymentTerms struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Days int       `json:"days"`
}
