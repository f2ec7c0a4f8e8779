package domain

import (
	"strings"
	"time"
)

// LineItem is a single extracted or manually entered transaction row.
// Mutable during verification; immutable once part of a saved LedgerRecord.
type LineItem struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// TaxBreakdown holds the fixed-rate GST split for a list of items.
// CGST and SGST are reported separately even though numerically equal.
// Values are stored unrounded; two-decimal rounding is presentation-only.
type TaxBreakdown struct {
	Subtotal float64 `json:"subtotal"`
	CGST     float64 `json:"cgst"`
	SGST     float64 `json:"sgst"`
	Total    float64 `json:"total"`
}

// LedgerRecord is one completed, saved digitization of a receipt page.
// Created once at save time and never mutated afterwards.
type LedgerRecord struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Items     []LineItem   `json:"items"`
	Tax       TaxBreakdown `json:"tax"`
}

// ShopType gives the remote extraction call domain context.
type ShopType string

const (
	ShopGeneral     ShopType = "general"
	ShopGrocery     ShopType = "grocery"
	ShopPharmacy    ShopType = "pharmacy"
	ShopElectronics ShopType = "electronics"
	ShopRestaurant  ShopType = "restaurant"
	ShopHardware    ShopType = "hardware"
)

// shopLabels maps shop types to the display labels used in prompts.
var shopLabels = map[ShopType]string{
	ShopGeneral:     "General Store",
	ShopGrocery:     "Kirana / Grocery",
	ShopPharmacy:    "Pharmacy / Medical",
	ShopElectronics: "Electronics",
	ShopRestaurant:  "Restaurant / Cafe",
	ShopHardware:    "Hardware",
}

// Label returns the human-readable name of the shop type.
// Unknown values fall back to the general-store label.
func (s ShopType) Label() string {
	if l, ok := shopLabels[s]; ok {
		return l
	}
	return shopLabels[ShopGeneral]
}

// Valid reports whether s is one of the known shop types.
func (s ShopType) Valid() bool {
	_, ok := shopLabels[s]
	return ok
}

// ShopTypes lists all known shop types.
func ShopTypes() []ShopType {
	return []ShopType{
		ShopGeneral, ShopGrocery, ShopPharmacy,
		ShopElectronics, ShopRestaurant, ShopHardware,
	}
}

// UserProfile is the session identity. It is created at login and lives only
// for the session; record history is what gets persisted, not the profile.
type UserProfile struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	ShopType    ShopType `json:"shop_type"`
}

// NewUserProfile builds a profile for a freshly logged-in user with the
// default shop type.
func NewUserProfile(username string) UserProfile {
	name := username
	if len(name) > 0 {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return UserProfile{
		Username:    username,
		DisplayName: name,
		ShopType:    ShopGeneral,
	}
}

// Poster is one generated marketing poster. Not persisted to history.
type Poster struct {
	ID         string    `json:"id"`
	Headline   string    `json:"headline"`
	Subline    string    `json:"subline"`
	Body       string    `json:"body"`
	ColorTheme string    `json:"color_theme"`
	ImageData  []byte    `json:"image_data,omitempty"` // raw image bytes, optional
	CreatedAt  time.Time `json:"created_at"`
}
