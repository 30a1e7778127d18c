package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"educamp/internal/domain"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// EnrollmentCreatedEvent es el payload publicado al crear una inscripcion.
type EnrollmentCreatedEvent struct {
	EnrollmentID string    `json:"enrollment_id"`
	StudentID    string    `json:"student_id"`
	ClassID      string    `json:"class_id"`
	UserID       string    `json:"user_id"`
	PaymentID    string    `json:"payment_id,omitempty"`
	EnrolledAt   time.Time `json:"enrolled_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// EnrollmentPublisher publica inscripciones nuevas en NATS.
type EnrollmentPublisher struct {
	client  publisher
	subject string
}

func NewEnrollmentPublisher(client publisher, subject string) *EnrollmentPublisher {
	if subject == "" {
		subject = SubjectEnrollmentCreated
	}
	return &EnrollmentPublisher{client: client, subject: subject}
}

func (p *EnrollmentPublisher) PublishEnrollmentCreated(_ context.Context, e domain.Enrollment) error {
	event := EnrollmentCreatedEvent{
		EnrollmentID: e.ID,
		StudentID:    e.StudentID,
		ClassID:      e.ClassID,
		UserID:       e.UserID,
		EnrolledAt:   e.EnrolledAt,
		ExpiresAt:    e.ExpiresAt,
	}
	if e.PaymentID != nil {
		event.PaymentID = *e.PaymentID
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal enrollment event: %w", err)
	}
	return p.client.Publish(p.subject, data)
}

// CapturedHandler procesa un pago capturado; lo implementa el servicio de pagos.
type CapturedHandler interface {
	HandleCapturedEvent(ctx context.Context, event domain.PaymentCapturedEvent) (domain.Enrollment, error)
}

// CapturedReply se envia cuando el emisor usa request/reply.
type CapturedReply struct {
	OK           bool   `json:"ok"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
	Error        string `json:"error,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`
}

// CapturedConsumer consume avisos de pagos capturados. El mismo aviso puede
// llegar varias veces; el handler es idempotente.
type CapturedConsumer struct {
	handler CapturedHandler
	logger  *zap.Logger
	timeout time.Duration
}

func NewCapturedConsumer(handler CapturedHandler, logger *zap.Logger) *CapturedConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapturedConsumer{handler: handler, logger: logger, timeout: 10 * time.Second}
}

// Start suscribe el consumidor con un queue group para repartir carga entre replicas.
func (c *CapturedConsumer) Start(client *NATSClient, subject, queue string) error {
	if subject == "" {
		subject = SubjectPaymentCaptured
	}
	return client.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		reply := c.Handle(msg.Data)
		if msg.Reply == "" {
			return
		}
		data, err := json.Marshal(reply)
		if err != nil {
			return
		}
		if err := msg.Respond(data); err != nil {
			c.logger.Warn("captured reply failed", zap.Error(err))
		}
	})
}

// Handle decodifica y procesa un mensaje.
func (c *CapturedConsumer) Handle(data []byte) CapturedReply {
	var event domain.PaymentCapturedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Warn("invalid captured event", zap.Error(err))
		return CapturedReply{Error: "invalid payload"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	e, err := c.handler.HandleCapturedEvent(ctx, event)
	if err != nil {
		retryable := !domain.IsDomainError(err)
		c.logger.Warn("captured event failed",
			zap.String("payment_id", event.PaymentID),
			zap.Bool("retryable", retryable),
			zap.Error(err),
		)
		return CapturedReply{Error: err.Error(), Retryable: retryable}
	}
	return CapturedReply{OK: true, EnrollmentID: e.ID}
}
