package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

const otpSubject = "0G ProofPass - Email Verification Code"

var otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #8b5cf6;">0G ProofPass</h2>
  <p>Your verification code is:</p>
  <div style="background: #1a1d25; padding: 20px; border-radius: 8px; text-align: center; margin: 20px 0;">
    <h1 style="color: #8b5cf6; margin: 0; font-size: 32px; letter-spacing: 4px;">{{.Code}}</h1>
  </div>
  <p style="color: #94a3b8;">This code will expire in {{.ExpiryMinutes}} minutes.</p>
  <p style="color: #94a3b8; font-size: 12px;">If you didn't request this code, please ignore this email.</p>
</div>
`))

type otpData struct {
	Code          string
	ExpiryMinutes int
}

// renderOTP собирает HTML тело письма с кодом.
func renderOTP(code string, expiryMinutes int) (string, error) {
	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, otpData{Code: code, ExpiryMinutes: expiryMinutes}); err != nil {
		return "", fmt.Errorf("mail: render otp template: %w", err)
	}
	return buf.String(), nil
}

// buildMessage формирует MIME сообщение с HTML телом.
func buildMessage(from, to, subject, body string) []byte {
	return []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)
}
