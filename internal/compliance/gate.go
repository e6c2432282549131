package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"callmonitor/internal/accounts"
	"callmonitor/internal/audit"
)

// Request identifies one prospective outbound dial.
//
// AccountID may be empty for numbers dialed without a linked account; the
// account-level checks then pass vacuously, while blanket legal holds, the
// DNC list, and the history checks still apply.
type Request struct {
	OrganizationID string `json:"organization_id"`
	AccountID      string `json:"account_id,omitempty"`
	PhoneNumber    string `json:"phone_number"`
	CampaignID     string `json:"campaign_id,omitempty"`
	TargetID       string `json:"target_id,omitempty"`
}

// Auditor receives the gate's decision and advisory events. Production
// wires the buffered audit writer here so evaluation never blocks on
// audit storage; an event the writer cannot persist is dead-lettered.
type Auditor interface {
	Enqueue(e audit.Event)
}

// Gate is the fail-closed pre-dial compliance check. Every outbound dial
// passes through Evaluate exactly once, immediately before carrier contact.
//
// Fail-closed invariant: any error reading account state or call history
// yields a denial with blocked_by=system_error. The gate never guesses.
type Gate struct {
	directory accounts.Directory
	oracle    *Oracle
	auditor   Auditor
	log       *slog.Logger
	clock     func() time.Time
}

func NewGate(directory accounts.Directory, oracle *Oracle, auditor Auditor, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		directory: directory,
		oracle:    oracle,
		auditor:   auditor,
		log:       log,
		clock:     time.Now,
	}
}

// Evaluate runs every hard check, derives advisories, and enqueues the
// audit record. The returned Result is authoritative: a nil error with
// Allowed=false is a policy denial, not a system failure.
//
// The decision event rides the buffered audit writer; a gate decision
// whose event cannot be persisted still stands, and the writer
// dead-letters the event.
func (g *Gate) Evaluate(ctx context.Context, req Request) Result {
	if req.OrganizationID == "" || req.PhoneNumber == "" {
		return g.systemDenial(ctx, req, nil, errors.New("compliance: organization_id and phone_number are required"))
	}

	var acct *accounts.Account
	if req.AccountID != "" {
		a, err := g.directory.GetAccount(ctx, req.OrganizationID, req.AccountID)
		if err != nil {
			// A target pointing at a missing or deleted account is a data
			// integrity problem, not a green light.
			return g.systemDenial(ctx, req, nil, err)
		}
		acct = &a
	}

	checks := make(map[CheckName]bool, len(hardCheckOrder))

	checks[CheckDoNotCall] = acct == nil || !acct.DoNotCall
	checks[CheckCeaseAndDesist] = acct == nil || !acct.CeaseAndDesist
	checks[CheckAttorneyRepresented] = acct == nil || !acct.AttorneyRepresented
	checks[CheckBankruptcy] = acct == nil || !acct.Bankruptcy
	checks[CheckConsentRevoked] = acct == nil || acct.ConsentStatus != accounts.ConsentRevoked

	held, err := g.directory.HasActiveLegalHold(ctx, req.OrganizationID, req.AccountID)
	if err != nil {
		return g.systemDenial(ctx, req, acct, err)
	}
	checks[CheckLegalHold] = !held

	onDNC, err := g.directory.IsOnDNCList(ctx, req.OrganizationID, req.PhoneNumber)
	if err != nil {
		return g.systemDenial(ctx, req, acct, err)
	}
	checks[CheckDNCList] = !onDNC

	var timezone string
	if acct != nil {
		timezone = acct.Timezone
	}
	within, err := g.oracle.WithinCallWindow(timezone)
	if err != nil {
		return g.systemDenial(ctx, req, acct, err)
	}
	checks[CheckTimeOfDay] = within

	underCap, err := g.oracle.UnderFrequencyCap(ctx, req.OrganizationID, req.PhoneNumber)
	if err != nil {
		return g.systemDenial(ctx, req, acct, err)
	}
	checks[CheckFrequency] = underCap

	cooled, err := g.oracle.OutsideConversationCooldown(ctx, req.OrganizationID, req.PhoneNumber)
	if err != nil {
		return g.systemDenial(ctx, req, acct, err)
	}
	checks[CheckConversationCooldown] = cooled

	res := Result{Allowed: true, Checks: checks}
	for _, name := range hardCheckOrder {
		if !checks[name] {
			res.Allowed = false
			blocked := name
			res.BlockedBy = &blocked
			res.Reason = reasons[name]
			break
		}
	}
	res.Warnings = g.advisories(acct)

	g.record(req, res)
	return res
}

// advisories derives the non-blocking warnings from account state.
func (g *Gate) advisories(acct *accounts.Account) []string {
	if acct == nil {
		return nil
	}
	var warns []string
	if _, ok := twoPartyConsentJurisdictions[acct.Jurisdiction]; ok {
		warns = append(warns, WarnTwoPartyConsent)
	}
	if acct.StatuteExpiresAt != nil && acct.StatuteExpiresAt.Before(g.clock()) {
		warns = append(warns, WarnExpiredSOL)
	}
	return warns
}

// systemDenial is the fail-closed path. The real error goes to the log and
// audit metadata; callers only ever see the system_error denial.
func (g *Gate) systemDenial(ctx context.Context, req Request, acct *accounts.Account, cause error) Result {
	g.log.Error("compliance evaluation failed, denying",
		"organization_id", req.OrganizationID,
		"account_id", req.AccountID,
		"phone_masked", MaskPhone(req.PhoneNumber),
		"error", cause,
	)
	blocked := CheckSystemError
	res := Result{
		Allowed:   false,
		Checks:    map[CheckName]bool{},
		BlockedBy: &blocked,
		Reason:    reasons[CheckSystemError],
		Warnings:  g.advisories(acct),
	}
	g.record(req, res)
	return res
}

// record enqueues the decision event and one advisory event per warning.
func (g *Gate) record(req Request, res Result) {
	if g.auditor == nil {
		return
	}

	checksJSON, _ := json.Marshal(res.Checks)
	passed := res.Allowed
	blocked := ""
	if res.BlockedBy != nil {
		blocked = string(*res.BlockedBy)
	}

	e := audit.Event{
		OrganizationID: req.OrganizationID,
		Type:           audit.EventTypeComplianceCheck,
		AccountID:      req.AccountID,
		CampaignID:     req.CampaignID,
		TargetID:       req.TargetID,
		PhoneMasked:    MaskPhone(req.PhoneNumber),
		Passed:         &passed,
		BlockedBy:      blocked,
		Checks:         string(checksJSON),
		Message:        res.Reason,
	}
	g.auditor.Enqueue(e)

	for _, w := range res.Warnings {
		g.auditor.Enqueue(audit.Event{
			OrganizationID: req.OrganizationID,
			Type:           audit.EventTypeComplianceAdvisory,
			AccountID:      req.AccountID,
			CampaignID:     req.CampaignID,
			TargetID:       req.TargetID,
			PhoneMasked:    MaskPhone(req.PhoneNumber),
			Message:        w,
		})
	}
}

// MaskPhone keeps only the last four digits of a number for logs and audit
// records. Short inputs are masked entirely.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
