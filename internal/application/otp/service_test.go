package otp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alumni-api/internal/domain"
	"github.com/alumni-api/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockDeliverer struct {
	mock.Mock
	mu    sync.Mutex
	codes []string
}

func (m *mockDeliverer) Deliver(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	m.codes = append(m.codes, code)
	m.mu.Unlock()
	return m.Called(ctx, email, code, expiresAt).Error(0)
}

func (m *mockDeliverer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[len(m.codes)-1]
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

// --- helpers ---

const email = "1si23is117@sit.ac.in"

func newTestService(t *testing.T, expose bool) (Service, *mockDeliverer, *clock, *memory.OTPStore) {
	t.Helper()
	d := &mockDeliverer{}
	d.On("Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewOTPStore()
	svc := NewService(ServiceDeps{
		Store:       store,
		Deliverer:   d,
		TTL:         10 * time.Minute,
		MaxAttempts: 5,
		ExposeCode:  expose,
		Now:         c.now,
	})
	return svc, d, c, store
}

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

// --- Issue ---

func TestIssue_DeliversAndHidesCodeInProduction(t *testing.T) {
	svc, d, c, store := newTestService(t, false)

	res, err := svc.Issue(context.Background(), "  1SI23IS117@SIT.AC.IN ", nil)

	require.NoError(t, err)
	assert.Equal(t, email, res.Email)
	assert.Equal(t, c.now().Add(10*time.Minute), res.ExpiresAt)
	assert.Empty(t, res.DevCode)
	assert.Len(t, d.last(), 6)
	assert.Equal(t, 1, store.Len())
	d.AssertCalled(t, "Deliver", mock.Anything, email, d.last(), res.ExpiresAt)
}

func TestIssue_ExposesCodeOutsideProduction(t *testing.T) {
	svc, d, _, _ := newTestService(t, true)

	res, err := svc.Issue(context.Background(), email, nil)

	require.NoError(t, err)
	assert.Equal(t, d.last(), res.DevCode)
}

func TestIssue_InvalidEmail(t *testing.T) {
	svc, d, _, _ := newTestService(t, true)

	_, err := svc.Issue(context.Background(), "not-an-email", nil)

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	d.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIssue_DeliveryFailure(t *testing.T) {
	d := &mockDeliverer{}
	d.On("Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	store := memory.NewOTPStore()
	svc := NewService(ServiceDeps{Store: store, Deliverer: d})
	ctx := context.Background()

	_, err := svc.Issue(ctx, email, nil)

	assert.ErrorContains(t, err, "deliver otp")
	assert.Equal(t, 0, store.Len())

	res, err := svc.Verify(ctx, email, d.last())
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.ReasonNoCode, res.Reason)
}

func TestIssue_DeliveryFailureKeepsNewerCode(t *testing.T) {
	store := memory.NewOTPStore()
	newer := &domain.OTPRecord{
		Email:     email,
		Code:      "654321",
		IssuedAt:  time.Now().UTC().Add(time.Second),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	d := &mockDeliverer{}
	d.On("Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, store.Put(context.Background(), newer))
		}).
		Return(errors.New("smtp down"))
	svc := NewService(ServiceDeps{Store: store, Deliverer: d})

	_, err := svc.Issue(context.Background(), email, nil)
	require.Error(t, err)

	res, err := svc.Verify(context.Background(), email, "654321")
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestIssue_ReissueReplacesPreviousCode(t *testing.T) {
	svc, d, _, store := newTestService(t, false)
	ctx := context.Background()

	_, err := svc.Issue(ctx, email, nil)
	require.NoError(t, err)
	first := d.last()
	_, err = svc.Issue(ctx, email, nil)
	require.NoError(t, err)
	second := d.last()
	assert.Equal(t, 1, store.Len())

	if first != second {
		res, err := svc.Verify(ctx, email, first)
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonInvalid, res.Reason)
	}
	res, err := svc.Verify(ctx, email, second)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

// --- Verify ---

func TestVerify_ValidReturnsUserDataOnce(t *testing.T) {
	svc, d, _, store := newTestService(t, false)
	ctx := context.Background()
	_, err := svc.Issue(ctx, email, map[string]interface{}{"first_name": "Asha"})
	require.NoError(t, err)

	res, err := svc.Verify(ctx, email, d.last())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "Asha", res.UserData["first_name"])
	assert.Equal(t, 0, store.Len())

	again, err := svc.Verify(ctx, email, d.last())
	require.NoError(t, err)
	assert.False(t, again.Valid)
	assert.Equal(t, domain.ReasonNoCode, again.Reason)
}

func TestVerify_NoCode(t *testing.T) {
	svc, _, _, _ := newTestService(t, false)

	res, err := svc.Verify(context.Background(), email, "123456")

	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoCode, res.Reason)
}

func TestVerify_MissingInput(t *testing.T) {
	svc, _, _, _ := newTestService(t, false)

	_, err := svc.Verify(context.Background(), email, " ")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestVerify_ExpiredDoesNotCountAsAttempt(t *testing.T) {
	svc, d, c, _ := newTestService(t, false)
	ctx := context.Background()
	_, err := svc.Issue(ctx, email, nil)
	require.NoError(t, err)

	c.add(10 * time.Minute)
	res, err := svc.Verify(ctx, email, d.last())
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonExpired, res.Reason)

	res, err = svc.Verify(ctx, email, d.last())
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoCode, res.Reason)
}

func TestVerify_AttemptBudget(t *testing.T) {
	svc, d, _, _ := newTestService(t, false)
	ctx := context.Background()
	_, err := svc.Issue(ctx, email, nil)
	require.NoError(t, err)
	bad := wrongCode(d.last())

	for want := 4; want >= 1; want-- {
		res, err := svc.Verify(ctx, email, bad)
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonInvalid, res.Reason)
		assert.Equal(t, want, res.AttemptsRemaining)
	}

	res, err := svc.Verify(ctx, email, bad)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonExhausted, res.Reason)

	// The correct code no longer helps once the budget is spent.
	res, err = svc.Verify(ctx, email, d.last())
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.ReasonNoCode, res.Reason)
}

func TestVerify_ConcurrentCorrectCodeSucceedsOnce(t *testing.T) {
	svc, d, _, _ := newTestService(t, false)
	ctx := context.Background()
	_, err := svc.Issue(ctx, email, nil)
	require.NoError(t, err)
	code := d.last()

	var valid int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Verify(ctx, email, code)
			if assert.NoError(t, err) && res.Valid {
				atomic.AddInt32(&valid, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), valid)
}

func TestVerify_ConcurrentWrongCodesNeverExceedBudget(t *testing.T) {
	svc, d, _, _ := newTestService(t, false)
	ctx := context.Background()
	_, err := svc.Issue(ctx, email, nil)
	require.NoError(t, err)
	bad := wrongCode(d.last())

	var invalid, exhausted int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Verify(ctx, email, bad)
			if !assert.NoError(t, err) {
				return
			}
			switch res.Reason {
			case domain.ReasonInvalid:
				atomic.AddInt32(&invalid, 1)
			case domain.ReasonExhausted:
				atomic.AddInt32(&exhausted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), invalid)
	assert.Equal(t, int32(1), exhausted)
}

// --- evaluate ---

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	live := func(attempts int) *domain.OTPRecord {
		return &domain.OTPRecord{Code: "123456", ExpiresAt: now.Add(time.Minute), Attempts: attempts}
	}

	tests := []struct {
		name      string
		rec       *domain.OTPRecord
		code      string
		reason    domain.VerifyReason
		op        domain.OTPOp
		remaining int
	}{
		{"no record", nil, "123456", domain.ReasonNoCode, domain.OTPKeep, 0},
		{"expired at boundary", &domain.OTPRecord{Code: "123456", ExpiresAt: now}, "123456", domain.ReasonExpired, domain.OTPDelete, 0},
		{"already exhausted", live(5), "123456", domain.ReasonExhausted, domain.OTPDelete, 0},
		{"first mismatch", live(0), "654321", domain.ReasonInvalid, domain.OTPSave, 4},
		{"last mismatch", live(4), "654321", domain.ReasonExhausted, domain.OTPDelete, 0},
		{"match after misses", live(3), "123456", domain.ReasonNone, domain.OTPDelete, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, op := evaluate(tt.rec, tt.code, now, 5)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.remaining, res.AttemptsRemaining)
			assert.Equal(t, tt.reason == domain.ReasonNone, res.Valid)
		})
	}
}
