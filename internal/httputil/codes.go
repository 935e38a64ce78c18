package httputil

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"

	// authentication
	CodeMissingAuth          = "MISSING_AUTH"
	CodeInvalidAuthHeader    = "INVALID_AUTH_HEADER"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID   = "INVALID_TOKEN_USER_ID"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeInvalidIdentityToken = "INVALID_IDENTITY_TOKEN"
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"
	CodeInvalidResetToken    = "INVALID_RESET_TOKEN"
	CodeEmailAlreadyExists   = "EMAIL_ALREADY_EXISTS"

	// account / entitlement
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeTrialAlreadyUsed = "TRIAL_ALREADY_USED"
	CodeNoBillingAccount = "NO_BILLING_ACCOUNT"
	CodeBillingUpstream  = "BILLING_UPSTREAM_ERROR"

	// webhooks
	CodeWebhookVerification = "WEBHOOK_VERIFICATION_FAILED"
	CodeWebhookProcessing   = "WEBHOOK_PROCESSING_FAILED"
)
