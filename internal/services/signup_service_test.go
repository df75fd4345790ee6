package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voty/internal/models"
)

func basicInfo(token string) models.BasicInfoRequest {
	return models.BasicInfoRequest{
		SignupToken: token,
		FullName:    "Ada Obi",
		Email:       "ada@example.com",
		PhoneNumber: "8030001111",
		CountryCode: "+234",
	}
}

func credentials(token string) models.CredentialsRequest {
	return models.CredentialsRequest{
		SignupToken:     token,
		DateOfBirth:     "1995-04-12",
		Password:        "s3cret-pass",
		ConfirmPassword: "s3cret-pass",
		AgreeToTerms:    true,
	}
}

func TestSignupTransitionTable(t *testing.T) {
	assert.True(t, canTransition(models.StepCollectingBasicInfo, ActionSubmit))
	assert.True(t, canTransition(models.StepAwaitingCode, ActionVerify))
	assert.True(t, canTransition(models.StepVerified, ActionAdvance))
	assert.True(t, canTransition(models.StepCollectingCredentials, ActionBack))
	assert.True(t, canTransition(models.StepCollectingCredentials, ActionComplete))

	assert.False(t, canTransition(models.StepCollectingBasicInfo, ActionComplete))
	assert.False(t, canTransition(models.StepAwaitingCode, ActionComplete))
	assert.False(t, canTransition(models.StepAwaitingCode, ActionAdvance))
	assert.False(t, canTransition(models.StepVerified, ActionComplete))
	assert.False(t, canTransition(models.StepVerified, ActionSubmit))
	assert.False(t, canTransition(models.StepRegistered, ActionSubmit))
	assert.False(t, canTransition("bogus", ActionSubmit))
}

func TestSignupHappyPath(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()

	res, err := st.signup.SubmitBasicInfo(ctx, basicInfo(""))
	require.NoError(t, err)
	assert.Equal(t, models.StepAwaitingCode, res.State.Step)
	assert.False(t, res.State.Verified)

	res, err = st.signup.VerifyCode(ctx, res.Token, st.sms.lastCode())
	require.NoError(t, err)
	assert.Equal(t, models.StepVerified, res.State.Step)
	assert.True(t, res.State.Verified)

	res, err = st.signup.Advance(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.StepCollectingCredentials, res.State.Step)

	res, err = st.signup.Complete(ctx, credentials(res.Token))
	require.NoError(t, err)
	assert.Equal(t, models.StepRegistered, res.State.Step)
	require.NotNil(t, res.Profile)
	assert.Equal(t, res.Profile.ID, res.State.ProfileID)
	assert.Equal(t, 1, st.identityRepo.count())
	assert.Len(t, st.profileRepo.rows, 1)

	_, err = st.signup.SubmitBasicInfo(ctx, basicInfo(res.Token))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSignupCannotCompleteBeforeVerification(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()

	res, err := st.signup.SubmitBasicInfo(ctx, basicInfo(""))
	require.NoError(t, err)

	_, err = st.signup.Complete(ctx, credentials(res.Token))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = st.signup.Advance(ctx, res.Token)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = st.signup.Complete(ctx, credentials(""))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, st.identityRepo.count())
}

func TestSignupRejectsForgedState(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()

	forger := NewAuthService("another-secret-another-secret-xx", AuthOptions{SignupTTL: time.Hour})
	forged, err := forger.IssueSignupToken(&models.SignupState{
		Step:        models.StepCollectingCredentials,
		FullName:    "Mallory",
		Email:       "m@example.com",
		PhoneNumber: "8030001111",
		CountryCode: "+234",
		Verified:    true,
	})
	require.NoError(t, err)

	_, err = st.signup.Complete(ctx, credentials(forged))
	assert.ErrorIs(t, err, ErrInvalidSignupToken)
	_, err = st.signup.Advance(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSignupToken)
}

func TestSignupVerifiedFlagStillCheckedAgainstStore(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()

	// a genuine token claiming verification, but the store never saw a code
	token, err := st.auth.IssueSignupToken(&models.SignupState{
		Step:        models.StepCollectingCredentials,
		FullName:    "Ada Obi",
		Email:       "ada@example.com",
		PhoneNumber: "8030001111",
		CountryCode: "+234",
		Verified:    true,
	})
	require.NoError(t, err)

	_, err = st.signup.Complete(ctx, credentials(token))
	assert.ErrorIs(t, err, ErrPhoneNotVerified)
}

func TestSignupBackKeepsVerification(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()

	res, err := st.signup.SubmitBasicInfo(ctx, basicInfo(""))
	require.NoError(t, err)
	res, err = st.signup.VerifyCode(ctx, res.Token, st.sms.lastCode())
	require.NoError(t, err)
	res, err = st.signup.Advance(ctx, res.Token)
	require.NoError(t, err)

	res, err = st.signup.Back(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.StepCollectingBasicInfo, res.State.Step)
	assert.True(t, res.State.Verified)

	// straight back to credentials, no new code
	sent := len(st.sms.sent)
	next, err := st.signup.Advance(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.StepCollectingCredentials, next.State.Step)

	// resubmitting with the same phone keeps verification too
	req := basicInfo(res.Token)
	req.FullName = "Ada N. Obi"
	res, err = st.signup.SubmitBasicInfo(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.StepVerified, res.State.Step)
	assert.Equal(t, "Ada N. Obi", res.State.FullName)
	assert.Len(t, st.sms.sent, sent)
}

func TestSignupChangingPhoneClearsVerification(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()

	res, err := st.signup.SubmitBasicInfo(ctx, basicInfo(""))
	require.NoError(t, err)
	res, err = st.signup.VerifyCode(ctx, res.Token, st.sms.lastCode())
	require.NoError(t, err)
	res, err = st.signup.Advance(ctx, res.Token)
	require.NoError(t, err)
	res, err = st.signup.Back(ctx, res.Token)
	require.NoError(t, err)

	req := basicInfo(res.Token)
	req.PhoneNumber = "8039998888"
	res, err = st.signup.SubmitBasicInfo(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.StepAwaitingCode, res.State.Step)
	assert.False(t, res.State.Verified)
	assert.Equal(t, "8039998888", res.State.PhoneNumber)
}

func TestSignupSubmitFromVerifiedIsRejected(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()

	res, err := st.signup.SubmitBasicInfo(ctx, basicInfo(""))
	require.NoError(t, err)
	res, err = st.signup.VerifyCode(ctx, res.Token, st.sms.lastCode())
	require.NoError(t, err)
	sent := len(st.sms.sent)

	req := basicInfo(res.Token)
	req.PhoneNumber = "8039999999"
	_, err = st.signup.SubmitBasicInfo(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, st.sms.sent, sent)

	ok, err := st.verification.IsVerified(ctx, "8030001111", "+234")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignupSubmitValidation(t *testing.T) {
	st := newTestStack()
	req := basicInfo("")
	req.FullName = ""

	_, err := st.signup.SubmitBasicInfo(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fullName", verr.Field)
	assert.Empty(t, st.sms.sent)
}

func TestSignupDefaultsCountryCode(t *testing.T) {
	st := newTestStack()
	req := basicInfo("")
	req.CountryCode = ""

	res, err := st.signup.SubmitBasicInfo(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "+234", res.State.CountryCode)
}

func TestSignupResendAndWrongCode(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()

	res, err := st.signup.SubmitBasicInfo(ctx, basicInfo(""))
	require.NoError(t, err)

	again, err := st.signup.ResendCode(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.StepAwaitingCode, again.State.Step)
	assert.Len(t, st.sms.sent, 2)

	_, err = st.signup.VerifyCode(ctx, again.Token, wrongCode(st.sms.lastCode()))
	assert.ErrorIs(t, err, ErrCodeExpiredOrInvalid)

	// the failed step does not move the wizard; the last token is still valid
	res, err = st.signup.VerifyCode(ctx, again.Token, st.sms.lastCode())
	require.NoError(t, err)
	assert.Equal(t, models.StepVerified, res.State.Step)
}

func TestSignupScenarioEndToEnd(t *testing.T) {
	st := newTestStack()
	ctx := context.Background()
	st.verification.genCode = func(int) (string, error) { return "123456", nil }

	res, err := st.signup.SubmitBasicInfo(ctx, basicInfo(""))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := st.signup.VerifyCode(ctx, res.Token, "000000")
		assert.ErrorIs(t, err, ErrCodeExpiredOrInvalid)
	}
	res, err = st.signup.VerifyCode(ctx, res.Token, "123456")
	require.NoError(t, err)
	res, err = st.signup.Advance(ctx, res.Token)
	require.NoError(t, err)
	res, err = st.signup.Complete(ctx, credentials(res.Token))
	require.NoError(t, err)

	assert.Equal(t, 1, st.identityRepo.count())
	require.Len(t, st.profileRepo.rows, 1)
	p := st.profileRepo.rows[res.Profile.ID]
	require.NotNil(t, p)
	assert.Equal(t, "+2348030001111", p.PhoneNumber)
}
