package internaldefs

import (
	sessionkit "github.com/airvend/sessionkit"
)

// CounterDef pairs an internal counter with its exported name and help
// text. Both exporters iterate this table so the two surfaces always
// publish the same series.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricSessionCreated, Name: "sessionkit_session_created_total", Help: "Created sessions."},
	{ID: sessionkit.MetricRenewSuccess, Name: "sessionkit_renew_success_total", Help: "Successful credential renewals."},
	{ID: sessionkit.MetricRenewDenied, Name: "sessionkit_renew_denied_total", Help: "Renewals denied for a dead or unknown session."},
	{ID: sessionkit.MetricRenewReuseDetected, Name: "sessionkit_renew_reuse_detected_total", Help: "Renewals carrying a superseded credential."},
	{ID: sessionkit.MetricRenewFailure, Name: "sessionkit_renew_failure_total", Help: "Renewals failed by infrastructure errors."},
	{ID: sessionkit.MetricSessionRevoked, Name: "sessionkit_session_revoked_total", Help: "Revoked sessions."},
	{ID: sessionkit.MetricRevokeAllForUser, Name: "sessionkit_revoke_all_for_user_total", Help: "Bulk revocations across a user's sessions."},
	{ID: sessionkit.MetricValidateSuccess, Name: "sessionkit_validate_success_total", Help: "Successful access token validations."},
	{ID: sessionkit.MetricValidateFailure, Name: "sessionkit_validate_failure_total", Help: "Failed access token validations."},
}

// AuditDroppedName is the series for audit events shed under dispatcher
// backpressure. It lives outside the counter table because it is read
// from the dispatcher, not the metrics snapshot.
const AuditDroppedName = "sessionkit_audit_dropped_total"

const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
