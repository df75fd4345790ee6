package models

type SignupStep string

const (
	StepCollectingBasicInfo   SignupStep = "collecting_basic_info"
	StepAwaitingCode          SignupStep = "awaiting_code"
	StepVerified              SignupStep = "verified"
	StepCollectingCredentials SignupStep = "collecting_credentials"
	StepRegistered            SignupStep = "registered"
)

// SignupState is the wizard state handed to the client as a signed token
// and re-validated on every step.
type SignupState struct {
	Step        SignupStep `json:"step"`
	FullName    string     `json:"fullName"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phoneNumber"`
	CountryCode string     `json:"countryCode"`
	Verified    bool       `json:"verified"`
	ProfileID   string     `json:"profileId,omitempty"`
}

func NewSignupState() *SignupState {
	return &SignupState{Step: StepCollectingBasicInfo, CountryCode: "+234"}
}

type BasicInfoRequest struct {
	SignupToken string `json:"signupToken"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	CountryCode string `json:"countryCode"`
}

type CredentialsRequest struct {
	SignupToken     string `json:"signupToken"`
	DateOfBirth     string `json:"dateOfBirth"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AgreeToTerms    bool   `json:"agreeToTerms"`
}
