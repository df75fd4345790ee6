package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"voty/internal/models"
	"voty/internal/repositories"
	"voty/internal/utils"
)

const testSecret = "test-secret-test-secret-test-secret!"

func newTestAuth() *authService {
	return NewAuthService(testSecret, AuthOptions{
		AccessTTL:  15 * time.Minute,
		SignupTTL:  30 * time.Minute,
		EmailTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}).(*authService)
}

// --- verification store ---

type memVerificationRepo struct {
	mu     sync.Mutex
	rows   map[string]*models.PhoneVerification
	nextID int64
	err    error
}

func newMemVerificationRepo() *memVerificationRepo {
	return &memVerificationRepo{rows: map[string]*models.PhoneVerification{}}
}

func vkey(phone, cc string) string { return cc + "|" + phone }

func (r *memVerificationRepo) Upsert(_ context.Context, phone, cc, codeHash string, expiresAt time.Time) (*models.PhoneVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.rows[vkey(phone, cc)]
	if !ok {
		r.nextID++
		v = &models.PhoneVerification{ID: r.nextID, PhoneNumber: phone, CountryCode: cc}
		r.rows[vkey(phone, cc)] = v
	}
	v.CodeHash, v.ExpiresAt, v.Attempts, v.IsVerified = codeHash, expiresAt, 0, false
	cp := *v
	return &cp, nil
}

func (r *memVerificationRepo) Check(_ context.Context, phone, cc string, check repositories.VerificationCheck) (*models.PhoneVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.rows[vkey(phone, cc)]
	if !ok {
		return nil, nil
	}
	cp := *v
	changed, err := check(&cp)
	if changed {
		*v = cp
	}
	return &cp, err
}

func (r *memVerificationRepo) IsVerified(_ context.Context, phone, cc string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	v, ok := r.rows[vkey(phone, cc)]
	return ok && v.IsVerified, nil
}

func (r *memVerificationRepo) Consume(_ context.Context, phone, cc string) (*models.PhoneVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.rows[vkey(phone, cc)]
	if !ok || !v.IsVerified {
		return nil, nil
	}
	delete(r.rows, vkey(phone, cc))
	return v, nil
}

func (r *memVerificationRepo) Restore(_ context.Context, v *models.PhoneVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.rows[vkey(v.PhoneNumber, v.CountryCode)]; ok {
		return nil
	}
	cp := *v
	r.rows[vkey(v.PhoneNumber, v.CountryCode)] = &cp
	return nil
}

func (r *memVerificationRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, v := range r.rows {
		if v.ExpiresAt.Before(before) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *memVerificationRepo) get(phone, cc string) *models.PhoneVerification {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[vkey(phone, cc)]
	if !ok {
		return nil
	}
	cp := *v
	return &cp
}

// --- SMS gateway ---

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
	err  error
}

type sentSMS struct{ to, text string }

func (f *fakeSMS) SendSMS(_ context.Context, to, text string) (*utils.SendSMSResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentSMS{to: to, text: text})
	return &utils.SendSMSResponse{}, nil
}

// lastCode extracts the code from the most recent message.
func (f *fakeSMS) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	text := f.sent[len(f.sent)-1].text
	return text[strings.LastIndex(text, " ")+1:]
}

type fakeLimiter struct{ err error }

func (l *fakeLimiter) Allow(context.Context, string) error { return l.err }

// --- identities, profiles, email ---

type memIdentityRepo struct {
	mu         sync.Mutex
	byID       map[string]*models.Identity
	createErr  error
	deleteErr  error
	markErr    error
	deleted    []string
	marked     []string
	confirmErr error
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{byID: map[string]*models.Identity{}}
}

func (r *memIdentityRepo) Create(_ context.Context, i *models.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if existing.Email == i.Email && !existing.PendingCleanup {
			return repositories.ErrDuplicate
		}
	}
	i.CreatedAt = time.Now()
	cp := *i
	r.byID[i.ID] = &cp
	return nil
}

func (r *memIdentityRepo) GetByID(_ context.Context, id string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

func (r *memIdentityRepo) GetByEmail(_ context.Context, email string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.byID {
		if i.Email == email && !i.PendingCleanup {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memIdentityRepo) ConfirmEmail(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.confirmErr != nil {
		return r.confirmErr
	}
	if i, ok := r.byID[id]; ok && i.EmailConfirmedAt == nil {
		i.EmailConfirmedAt = &at
	}
	return nil
}

func (r *memIdentityRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byID[id]; ok {
		i.PasswordHash = hash
		return nil
	}
	return errors.New("no identity")
}

func (r *memIdentityRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.byID, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *memIdentityRepo) MarkForCleanup(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	if i, ok := r.byID[id]; ok {
		i.PendingCleanup = true
	}
	r.marked = append(r.marked, id)
	return nil
}

func (r *memIdentityRepo) ListPendingCleanup(_ context.Context, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, i := range r.byID {
		if i.PendingCleanup && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memIdentityRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type memProfileRepo struct {
	mu       sync.Mutex
	rows     map[string]*models.Profile
	failN    int // fail the first failN creates
	failErr  error
	attempts int
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{rows: map[string]*models.Profile{}}
}

func (r *memProfileRepo) Create(_ context.Context, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.attempts <= r.failN {
		if r.failErr != nil {
			return r.failErr
		}
		return errors.New("connection reset")
	}
	if _, ok := r.rows[p.ID]; ok {
		return repositories.ErrDuplicate
	}
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *memProfileRepo) GetByID(_ context.Context, id string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

type fakeEmail struct {
	mu           sync.Mutex
	confirmLinks []string
	resetLinks   []string
	err          error
}

func (f *fakeEmail) SendConfirmationEmail(_, _, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.confirmLinks = append(f.confirmLinks, link)
	return nil
}

func (f *fakeEmail) SendPasswordResetEmail(_, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.resetLinks = append(f.resetLinks, link)
	return nil
}

// --- assembled stack ---

type testStack struct {
	clock        *time.Time
	verRepo      *memVerificationRepo
	sms          *fakeSMS
	limiter      *fakeLimiter
	identityRepo *memIdentityRepo
	profileRepo  *memProfileRepo
	emails       *fakeEmail
	auth         *authService
	verification *verificationService
	identities   *identityService
	registration *registrationService
	signup       *signupService
}

func newTestStack() *testStack {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := &testStack{
		clock:        &now,
		verRepo:      newMemVerificationRepo(),
		sms:          &fakeSMS{},
		limiter:      &fakeLimiter{},
		identityRepo: newMemIdentityRepo(),
		profileRepo:  newMemProfileRepo(),
		emails:       &fakeEmail{},
		auth:         newTestAuth(),
	}
	clock := func() time.Time { return *st.clock }
	st.auth.now = clock

	st.verification = NewVerificationService(st.verRepo, st.sms, st.limiter, nil, nil, VerificationOptions{
		BcryptCost: bcrypt.MinCost,
	}).(*verificationService)
	st.verification.now = clock

	st.identities = NewIdentityService(st.identityRepo, st.auth, st.emails, "http://api.test", nil).(*identityService)
	st.identities.now = clock

	st.registration = NewRegistrationService(st.identities, st.profileRepo, st.verification, nil, nil, RegistrationOptions{
		ProfileRetries: 3,
		RetryBackoff:   time.Millisecond,
	}).(*registrationService)
	st.registration.now = clock
	st.registration.sleep = func(context.Context, time.Duration) error { return nil }

	st.signup = NewSignupService(st.auth, st.verification, st.registration, "http://app.test/welcome", nil).(*signupService)
	return st
}

func (st *testStack) advance(d time.Duration) {
	*st.clock = st.clock.Add(d)
}

type memResetRepo struct {
	mu     sync.Mutex
	rows   map[string]*models.PasswordReset
	nextID int64
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{rows: map[string]*models.PasswordReset{}}
}

func (r *memResetRepo) Create(_ context.Context, identityID, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	pr := &models.PasswordReset{ID: r.nextID, IdentityID: identityID, Token: token, ExpiresAt: expiresAt}
	r.rows[token] = pr
	cp := *pr
	return &cp, nil
}

func (r *memResetRepo) GetByToken(_ context.Context, token string) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.rows[token]
	if !ok {
		return nil, nil
	}
	cp := *pr
	return &cp, nil
}

func (r *memResetRepo) MarkUsed(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pr := range r.rows {
		if pr.ID == id {
			if pr.UsedAt != nil {
				return false, nil
			}
			now := time.Now()
			pr.UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}
