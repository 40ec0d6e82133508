package models

import "time"

// PaymentConfig is the bank account and QR students transfer to. At most
// one record may be active at a time; the repository enforces it by
// deactivating the previous record in the same transaction that activates
// a new one.
type PaymentConfig struct {
	ID           string    `db:"id" json:"id"`
	NumeroCuenta string    `db:"numero_cuenta" json:"numero_cuenta"`
	Banco        string    `db:"banco" json:"banco"`
	Titular      string    `db:"titular" json:"titular"`
	TipoCuenta   string    `db:"tipo_cuenta" json:"tipo_cuenta"`
	QRURL        *string   `db:"qr_url" json:"qr_url,omitempty"`
	Notas        *string   `db:"notas" json:"notas,omitempty"`
	Activo       bool      `db:"activo" json:"activo"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
