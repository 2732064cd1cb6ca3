package models

import "time"

// Stage is the current discrete state of a checkout session.
type Stage string

const (
	StageSelection          Stage = "SELECTION"
	StageCollectingCard     Stage = "COLLECTING_CARD"
	StageCollectingRedirect Stage = "COLLECTING_REDIRECT"
	StageCollectingBank     Stage = "COLLECTING_BANK"
	StageProcessing         Stage = "PROCESSING"
	StageSuccess            Stage = "SUCCESS"
)

// Stages lists every stage a session can be in.
var Stages = []Stage{
	StageSelection,
	StageCollectingCard,
	StageCollectingRedirect,
	StageCollectingBank,
	StageProcessing,
	StageSuccess,
}

func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// Collecting reports whether s is one of the method-specific input stages.
func (s Stage) Collecting() bool {
	switch s {
	case StageCollectingCard, StageCollectingRedirect, StageCollectingBank:
		return true
	}
	return false
}

// Method is a payment method offered by the selector.
type Method string

const (
	MethodCard     Method = "card"
	MethodRedirect Method = "redirect"
	MethodBank     Method = "bank"
)

// Methods is the closed set of payment methods, in display order.
var Methods = []Method{MethodCard, MethodRedirect, MethodBank}

func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodRedirect, MethodBank:
		return true
	}
	return false
}

// CollectingStage returns the input stage for the method.
func (m Method) CollectingStage() Stage {
	switch m {
	case MethodCard:
		return StageCollectingCard
	case MethodRedirect:
		return StageCollectingRedirect
	case MethodBank:
		return StageCollectingBank
	}
	return ""
}

// PlanDescriptor is the plan being purchased, supplied by the host.
type PlanDescriptor struct {
	Name  string `json:"name" binding:"required"`
	Price string `json:"price" binding:"required"`
}

// StatusMessages cycle while a session is in StageProcessing.
var StatusMessages = []string{
	"Initializing…",
	"Securing connection…",
	"Sending details to provider…",
	"Awaiting confirmation…",
	"Processing payment…",
}

// StageChangedEvent is published on every stage transition.
type StageChangedEvent struct {
	SessionID     string    `json:"session_id"`
	Stage         Stage     `json:"stage"`
	PreviousStage Stage     `json:"previous_stage"`
	Method        Method    `json:"method,omitempty"`
	Plan          string    `json:"plan,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// CheckoutSnapshot is a read-only view of an orchestrator.
type CheckoutSnapshot struct {
	SessionID     string          `json:"session_id,omitempty"`
	Open          bool            `json:"open"`
	Stage         Stage           `json:"stage"`
	Method        Method          `json:"method,omitempty"`
	StatusMessage string          `json:"status_message,omitempty"`
	Plan          *PlanDescriptor `json:"plan,omitempty"`
	CanGoBack     bool            `json:"can_go_back"`
}

// Tier is a user's entitlement level.
type Tier string

const (
	TierFree    Tier = "FREE"
	TierPremium Tier = "PREMIUM"
)

// Entitlement is the persisted tier of a user.
type Entitlement struct {
	UserID     string
	Tier       Tier
	PlanName   string
	PlanPrice  string
	UpgradedAt time.Time
	UpdatedAt  time.Time
}

// UpgradeEvent is published once a user's entitlement has been elevated.
type UpgradeEvent struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Plan      string    `json:"plan"`
	Price     string    `json:"price"`
	Tier      Tier      `json:"tier"`
	Timestamp time.Time `json:"timestamp"`
}
