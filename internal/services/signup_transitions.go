package services

import "voty/internal/models"

// Wizard actions.
const (
	ActionSubmit   = "submit"
	ActionResend   = "resend"
	ActionVerify   = "verify"
	ActionAdvance  = "advance"
	ActionBack     = "back"
	ActionComplete = "complete"
)

// SignupTransitions lists the actions each step accepts.
// Advance out of CollectingBasicInfo additionally needs a verified phone.
var SignupTransitions = map[models.SignupStep]map[string]bool{
	models.StepCollectingBasicInfo:   {ActionSubmit: true, ActionAdvance: true},
	models.StepAwaitingCode:          {ActionSubmit: true, ActionResend: true, ActionVerify: true},
	models.StepVerified:              {ActionAdvance: true},
	models.StepCollectingCredentials: {ActionBack: true, ActionComplete: true},
	models.StepRegistered:            {},
}

func canTransition(step models.SignupStep, action string) bool {
	actions, ok := SignupTransitions[step]
	if !ok {
		return false
	}
	return actions[action]
}
