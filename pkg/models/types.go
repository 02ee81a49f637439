package models

import (
	"errors"
	"time"
)

/*
FUNNELS → definitions stored per experience.
*/

// ErrFunnelNotFound is returned by funnel stores when no funnel exists for an experience.
var ErrFunnelNotFound = errors.New("funnel not found")

// StepProduct carries the display data of the product bound to a step.
type StepProduct struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Step is one stage of a funnel. An empty ProductID means the step is not bound to a product.
type Step struct {
	Order     int          `json:"order" yaml:"order"`
	ProductID string       `json:"productId,omitempty" yaml:"productId,omitempty"`
	Product   *StepProduct `json:"product,omitempty" yaml:"product,omitempty"`
}

// Funnel is identified by its experience.
type Funnel struct {
	ID           string    `json:"id" yaml:"id,omitempty"`
	ExperienceID string    `json:"experience_id" yaml:"experience_id" validate:"required"`
	CompanyID    string    `json:"company_id" yaml:"company_id" validate:"required"`
	Steps        []Step    `json:"steps" yaml:"steps"`
	CountingMode string    `json:"counting_mode" yaml:"counting_mode" validate:"oneof=A B"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

/*
LEDGER → records read from the membership ledger.
*/

// MembershipRecord is one (company, product, user) membership as observed by captures.
type MembershipRecord struct {
	CompanyID  string
	ProductID  string
	UserID     string
	JoinedAt   *time.Time
	LastSeenAt *time.Time
	LeftAt     *time.Time // set once a capture no longer observes the user
}

// SnapshotRecord is the member count of a product at one capture.
type SnapshotRecord struct {
	CompanyID   string
	ProductID   string
	SnapshotAt  time.Time
	MemberCount int
}

/*
REPORT → structures returned by the analytics engine.
*/

// SnapshotPoint is a SnapshotRecord as exposed in a report.
type SnapshotPoint struct {
	SnapshotAt  time.Time `json:"snapshot_at"`
	MemberCount int       `json:"member_count"`
}

// RetentionResult holds retention for one product at one horizon.
type RetentionResult struct {
	Base     int     `json:"base"`
	Retained int     `json:"retained"`
	Rate     float64 `json:"rate"` // percentage 0-100
}

// CohortBucket holds conversion of one signup-week cohort between two steps.
type CohortBucket struct {
	Cohort         string   `json:"cohort"` // Monday of the ISO week, YYYY-MM-DD
	FromCount      int      `json:"fromCount"`
	ToCount        int      `json:"toCount"`
	ConversionRate float64  `json:"conversionRate"`
	MedianHours    *float64 `json:"medianHours"`
	P75Hours       *float64 `json:"p75Hours"`
}

// StageCohorts is the conversion between two adjacent steps.
type StageCohorts struct {
	FromProductID string         `json:"fromProductId"`
	ToProductID   string         `json:"toProductId"`
	FromName      string         `json:"fromName"`
	ToName        string         `json:"toName"`
	Cohorts       []CohortBucket `json:"cohorts"`
}

// FunnelReport is the combined health report of one funnel.
type FunnelReport struct {
	RangeDays    int                                   `json:"rangeDays"`
	Since        time.Time                             `json:"since"`
	CompanyID    string                                `json:"companyId"`
	ProductIDs   []string                              `json:"productIds"`
	Snapshots    map[string][]SnapshotPoint            `json:"snapshots"`
	Retention    map[string]map[string]RetentionResult `json:"retention"`
	StageCohorts []StageCohorts                        `json:"stageCohorts"`
}

/*
CONFIG → parameters of one report computation.
*/

// ReportConfig contains the parameters passed to the report computation.
type ReportConfig struct {
	RangeDays   float64   // lookback in days; clamped to [1,365], 30 when zero or non-finite
	Now         time.Time // upper bound of the windows; time.Now().UTC() when zero
	Concurrency int       // parallel ledger reads; 1 is strictly sequential
	Verbose     bool      // per-stage debug logs
}
