package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"educamp/internal/domain"
)

// CallbackVerifier valida los avisos firmados (HS256) que envia el subsistema de pagos.
type CallbackVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

type CallbackClaims struct {
	PaymentID string `json:"payment_id"`
	ClassID   string `json:"class_id"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

var (
	ErrCallbackInvalid = domain.NewError(domain.ErrUnauthenticated, "callback signature invalid")
	ErrCallbackExpired = domain.NewError(domain.ErrUnauthenticated, "callback expired")
)

func NewCallbackVerifier(secret, issuer string) *CallbackVerifier {
	if issuer == "" {
		issuer = "educamp-payments"
	}
	return &CallbackVerifier{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Sign emite un aviso firmado. Lo usa el subsistema de pagos y los tests.
func (v *CallbackVerifier) Sign(event domain.PaymentCapturedEvent, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrCallbackInvalid
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := v.now().UTC()
	claims := CallbackClaims{
		PaymentID: event.PaymentID,
		ClassID:   event.ClassID,
		UserID:    event.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   event.PaymentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *CallbackVerifier) Verify(tokenString string) (domain.PaymentCapturedEvent, error) {
	if len(v.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return domain.PaymentCapturedEvent{}, ErrCallbackInvalid
	}

	var claims CallbackClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.PaymentCapturedEvent{}, ErrCallbackExpired
		}
		return domain.PaymentCapturedEvent{}, ErrCallbackInvalid
	}

	event := domain.PaymentCapturedEvent{
		PaymentID: strings.TrimSpace(claims.PaymentID),
		ClassID:   strings.TrimSpace(claims.ClassID),
		UserID:    strings.TrimSpace(claims.UserID),
	}
	if event.PaymentID == "" || event.ClassID == "" || event.UserID == "" {
		return domain.PaymentCapturedEvent{}, ErrCallbackInvalid
	}
	if claims.Subject != "" && claims.Subject != event.PaymentID {
		return domain.PaymentCapturedEvent{}, ErrCallbackInvalid
	}
	return event, nil
}
