package dto

// SendOTPRequest тело POST /api/auth/send-otp.
type SendOTPRequest struct {
	Email string `json:"email"`
}

// VerifyOTPRequest тело POST /api/auth/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// AnalyzeContributionRequest тело POST /api/compute/analyze.
// Photos остаётся nil, если поле не пришло.
type AnalyzeContributionRequest struct {
	Photos        []string `json:"photos"`
	Feedback      string   `json:"feedback"`
	EventID       int64    `json:"eventId"`
	WalletAddress string   `json:"walletAddress"`
}

// AttestCheckInRequest тело POST /api/checkin/attest.
type AttestCheckInRequest struct {
	EventID       int64  `json:"eventId" binding:"required"`
	WalletAddress string `json:"walletAddress" binding:"required"`
	Email         string `json:"email"`
	Signature     string `json:"signature" binding:"required"`
}
