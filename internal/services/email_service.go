package services

import (
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendConfirmationEmail(email, fullName, link string) error
	SendPasswordResetEmail(email, link string) error
}

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	sender mailSender
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	return &emailService{
		sender: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
	}
}

func (s *emailService) SendConfirmationEmail(email, fullName, link string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Confirm your VOTY account")

	body := fmt.Sprintf(`
		<h2>Welcome to VOTY, %s!</h2>
		<p>Your account has been created. Please confirm your email address to get started.</p>
		<p><a href="%s">Confirm my email</a></p>
		<p>If you did not sign up, you can ignore this email.</p>
	`, html.EscapeString(fullName), html.EscapeString(link))
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	return nil
}

func (s *emailService) SendPasswordResetEmail(email, link string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password reset request")

	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your VOTY account.</p>
		<p><a href="%s">Choose a new password</a></p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, html.EscapeString(link))
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}
