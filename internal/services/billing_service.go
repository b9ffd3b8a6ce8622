package services

import (
	"context"
	"strings"
	"time"

	"github.com/aether-os/engine/internal/billing"
	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/repository"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BillingService sells plans by card and by bank transfer.
type BillingService interface {
	Checkout(ctx context.Context, plan, userID, origin string) (string, error)
	Verify(ctx context.Context, sessionID string) (*VerifyResult, error)
	Apply(ctx context.Context, sessionID string) (string, error)
	HandleTransfer(ctx context.Context, in TransferNotification) (*TransferResult, error)
	HandleLegacyPayment(ctx context.Context, in LegacyPayment) (*LegacyPaymentResult, error)
	SetupInfo() SetupInfo
}

type VerifyResult struct {
	Paid bool   `json:"paid"`
	Plan string `json:"plan"`
}

// TransferNotification is the bank gateway's webhook body.
type TransferNotification struct {
	Gateway         string  `json:"gateway"`
	TransferContent string  `json:"transferContent"`
	TransferAmount  float64 `json:"transferAmount"`
	ReferenceCode   string  `json:"referenceCode"`
}

// TransferResult is either an upgrade or an acknowledgement with Message set.
type TransferResult struct {
	Success    bool   `json:"success,omitempty"`
	UpgradedTo string `json:"upgraded_to,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// LegacyPayment is the memo-keyword webhook body.
type LegacyPayment struct {
	Content string  `json:"content"`
	Amount  float64 `json:"amount"`
	Gateway string  `json:"gateway"`
	UserID  string  `json:"userId"`
}

type LegacyPaymentResult struct {
	TransactionID  string    `json:"transaction_id"`
	PlanUpgradedTo string    `json:"plan_upgraded_to"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
}

type SetupInfo struct {
	Message string `json:"message"`
	SQL     string `json:"sql"`
}

// PaymentNotifier tells a user's live sessions about an upgrade.
type PaymentNotifier interface {
	PaymentSucceeded(ctx context.Context, userID uuid.UUID, plan string, amount float64) error
}

// PaymentObserver counts webhook outcomes.
type PaymentObserver interface {
	PaymentEvent(result string)
}

// subscriptionPeriod is how long a card payment extends a plan.
const subscriptionPeriod = 30 * 24 * time.Hour

const subscriptionsSQL = `create table if not exists subscriptions (
  user_id uuid primary key,
  plan varchar(16) not null default 'free',
  status varchar(16) not null default 'inactive',
  current_period_end timestamptz,
  created_at timestamptz default now(),
  updated_at timestamptz default now()
);`

type billingService struct {
	gateway  billing.Gateway
	subs     repository.SubscriptionRepository
	notifier PaymentNotifier
	observer PaymentObserver
	origin   string
	now      func() time.Time
}

func NewBillingService(gateway billing.Gateway, subs repository.SubscriptionRepository, notifier PaymentNotifier, observer PaymentObserver, defaultOrigin string) BillingService {
	return &billingService{
		gateway:  gateway,
		subs:     subs,
		notifier: notifier,
		observer: observer,
		origin:   defaultOrigin,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ BillingService = (*billingService)(nil)

func (s *billingService) requireGateway() error {
	if s.gateway == nil {
		return appErr.New(appErr.CodeMisconfigured, "STRIPE_SECRET_KEY missing")
	}
	return nil
}

func (s *billingService) observe(result string) {
	if s.observer != nil {
		s.observer.PaymentEvent(result)
	}
}

func (s *billingService) Checkout(ctx context.Context, plan, userID, origin string) (string, error) {
	if err := s.requireGateway(); err != nil {
		return "", err
	}
	if origin == "" {
		origin = s.origin
	}
	sess, err := s.gateway.CreateCheckout(ctx, billing.CheckoutInput{Plan: plan, UserID: userID, Origin: origin})
	if err != nil {
		logger.L().Error("checkout failed", zap.String("plan", plan), zap.Error(err))
		return "", err
	}
	return sess.URL, nil
}

func (s *billingService) Verify(ctx context.Context, sessionID string) (*VerifyResult, error) {
	if err := s.requireGateway(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, appErr.New(appErr.CodeInvalid, "Missing session_id")
	}
	sess, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Paid: sess.Paid, Plan: sess.Plan}, nil
}

// Apply activates the plan bought in a paid checkout session for 30 days.
func (s *billingService) Apply(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", appErr.New(appErr.CodeInvalid, "Missing sessionId")
	}
	if err := s.requireGateway(); err != nil {
		return "", err
	}
	sess, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !sess.Paid {
		return "", appErr.New(appErr.CodeInvalid, "Payment not completed")
	}
	if sess.UserID == "" {
		return "", appErr.New(appErr.CodeInvalid, "User ID not found in transaction")
	}
	userID, err := uuid.Parse(sess.UserID)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInvalid, "User ID not found in transaction")
	}
	end := s.now().Add(subscriptionPeriod)
	if err := s.subs.Upsert(ctx, userID, sess.Plan, models.SubscriptionActive, &end); err != nil {
		logger.L().Error("subscription update failed", zap.String("user_id", userID.String()), zap.Error(err))
		return "", appErr.Wrap(err, appErr.CodeInternal, "Failed to update subscription in database")
	}
	logger.L().Info("subscription applied", zap.String("user_id", userID.String()), zap.String("plan", sess.Plan))
	return sess.Plan, nil
}

// HandleTransfer upgrades the user named in a transfer memo when the amount
// covers a plan. Ignored notifications write nothing.
func (s *billingService) HandleTransfer(ctx context.Context, in TransferNotification) (*TransferResult, error) {
	if in.TransferContent == "" {
		return nil, appErr.New(appErr.CodeInvalid, "No content")
	}
	d := billing.ResolveTransfer(in.TransferContent, in.TransferAmount)
	if d.Ignored != "" {
		logger.L().Info("transfer ignored", zap.String("reason", d.Ignored), zap.Float64("amount", in.TransferAmount))
		s.observe("ignored")
		return &TransferResult{Message: d.Ignored}, nil
	}

	if err := s.subs.Upsert(ctx, d.UserID, d.Plan, models.SubscriptionActive, nil); err != nil {
		logger.L().Error("subscription update failed", zap.String("user_id", d.UserID.String()), zap.Error(err))
		s.observe("failed")
		return nil, appErr.Wrap(err, appErr.CodeInternal, "Database update failed")
	}
	if s.notifier != nil {
		if err := s.notifier.PaymentSucceeded(ctx, d.UserID, d.Plan, in.TransferAmount); err != nil {
			logger.L().Warn("payment notification failed", zap.String("user_id", d.UserID.String()), zap.Error(err))
		}
	}
	s.observe("applied")
	return &TransferResult{Success: true, UpgradedTo: d.Plan, UserID: d.UserID.String()}, nil
}

// HandleLegacyPayment acknowledges a memo-keyword payment without writing.
func (s *billingService) HandleLegacyPayment(_ context.Context, in LegacyPayment) (*LegacyPaymentResult, error) {
	if in.Content == "" || in.Amount == 0 {
		return nil, appErr.New(appErr.CodeInvalid, "Invalid payload")
	}
	logger.L().Info("legacy payment webhook", zap.String("gateway", in.Gateway), zap.String("content", in.Content))
	user := in.UserID
	if user == "" {
		user = "anonymous"
	}
	s.observe("acknowledged")
	return &LegacyPaymentResult{
		TransactionID:  "txn_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9],
		PlanUpgradedTo: billing.MemoPlan(in.Content),
		UserID:         user,
		Timestamp:      s.now(),
	}, nil
}

func (s *billingService) SetupInfo() SetupInfo {
	return SetupInfo{
		Message: "Subscriptions are created by the migrate command. Run this SQL manually only on databases it does not manage.",
		SQL:     subscriptionsSQL,
	}
}
