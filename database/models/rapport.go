package models

import "time"

// WorkerEntry 工时记录 one main-d'oeuvre row of the daily report
type WorkerEntry struct {
	ID          string `json:"id"`
	Employe     string `json:"employe"`
	HeureDebut  string `json:"heureDebut"`
	HeureFin    string `json:"heureFin"`
	Description string `json:"description"`
}

// MaterialEntry matériaux row; AI-detected rows keep their confidence.
type MaterialEntry struct {
	ID           string  `json:"id"`
	Item         string  `json:"item"`
	Quantite     string  `json:"quantite"`
	Unite        string  `json:"unite"`
	DetectedByAI bool    `json:"detectedByAI,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
}

// EquipmentEntry équipements row
type EquipmentEntry struct {
	ID          string `json:"id"`
	Nom         string `json:"nom"`
	Heures      string `json:"heures"`
	Description string `json:"description"`
}

// SubcontractorEntry sous-traitants row
type SubcontractorEntry struct {
	ID          string `json:"id"`
	Entreprise  string `json:"entreprise"`
	NbPersonnes string `json:"nbPersonnes"`
	Heures      string `json:"heures"`
	Description string `json:"description"`
}

// Work order status values
const (
	WorkOrderEnCours = "en_cours"
	WorkOrderTermine = "termine"
	WorkOrderAnnule  = "annule"
)

// WorkOrderEntry ordres de travail row; extras carry a billable amount.
type WorkOrderEntry struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	IsExtra      bool   `json:"isExtra"`
	MontantExtra string `json:"montantExtra"`
	Status       string `json:"status"`
}

// MeetingEntry réunions row
type MeetingEntry struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Participants string `json:"participants"`
	Notes        string `json:"notes"`
}

// Rapport is one daily report. The dynamic form rows are stored as JSON
// columns; the aggregate columns (totals, extras) are recomputed on every
// write so the dashboard can query them directly.
type Rapport struct {
	ID          string `gorm:"primaryKey;size:36"`
	Projet      string `gorm:"index;not null"`
	ProjetNom   string
	Date        string `gorm:"index;not null"` // YYYY-MM-DD
	Adresse     string
	Meteo       string
	Temperature string
	Redacteur   string `gorm:"index"`

	MainOeuvre    []WorkerEntry        `gorm:"serializer:json"`
	Materiaux     []MaterialEntry      `gorm:"serializer:json"`
	Equipements   []EquipmentEntry     `gorm:"serializer:json"`
	Soustraitants []SubcontractorEntry `gorm:"serializer:json"`
	OrdresTravail []WorkOrderEntry     `gorm:"serializer:json"`
	Reunions      []MeetingEntry       `gorm:"serializer:json"`

	Evenements        string `gorm:"type:text"`
	ProblemesSecurite string `gorm:"type:text"`
	NotesGenerales    string `gorm:"type:text"`

	TotalHeuresMO float64
	TotalPhotos   int
	HasExtras     bool
	NbExtras      int
	TotalExtras   float64

	CurrentVersion int `gorm:"default:1;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
