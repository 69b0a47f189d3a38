package mock

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Notifier is the service contract the decoration tests register and
// resolve. Send returns the message tagged by every layer it passed through,
// so tests can assert the exact wrap order.
type Notifier interface {
	Send(message string) string
}

// EmailNotifier is the base implementation.
type EmailNotifier struct {
	ID int64
}

var emailInstances atomic.Int64

func NewEmailNotifier() *EmailNotifier {
	return &EmailNotifier{ID: emailInstances.Add(1)}
}

func (n *EmailNotifier) Send(message string) string {
	return "email:" + message
}

// EmailInstances reports how many EmailNotifier values have been constructed
// since the last ResetCounters call.
func EmailInstances() int64 {
	return emailInstances.Load()
}

func ResetCounters() {
	emailInstances.Store(0)
}

// RetryNotifier wraps a Notifier with retry behavior.
type RetryNotifier struct {
	inner Notifier
}

func NewRetryNotifier(inner Notifier) *RetryNotifier {
	return &RetryNotifier{inner: inner}
}

func (n *RetryNotifier) Send(message string) string {
	return fmt.Sprintf("retry(%s)", n.inner.Send(message))
}

// MetricsNotifier wraps a Notifier with metrics collection.
type MetricsNotifier struct {
	inner Notifier
	Sent  atomic.Int64
}

func NewMetricsNotifier(inner Notifier) *MetricsNotifier {
	return &MetricsNotifier{inner: inner}
}

func (n *MetricsNotifier) Send(message string) string {
	n.Sent.Add(1)
	return fmt.Sprintf("metrics(%s)", n.inner.Send(message))
}

// AuditNotifier wraps a Notifier with audit logging.
type AuditNotifier struct {
	inner Notifier
}

func NewAuditNotifier(inner Notifier) *AuditNotifier {
	return &AuditNotifier{inner: inner}
}

func (n *AuditNotifier) Send(message string) string {
	return fmt.Sprintf("audit(%s)", n.inner.Send(message))
}

// Config is a dependency resolved from the registry by constructors that
// need more than the wrapped instance.
type Config struct {
	Prefix string
}

func NewConfig() *Config {
	return &Config{Prefix: "sms"}
}

// SMSNotifier is an alternative base implementation with a constructor
// dependency.
type SMSNotifier struct {
	cfg *Config
}

func NewSMSNotifier(cfg *Config) *SMSNotifier {
	return &SMSNotifier{cfg: cfg}
}

func (n *SMSNotifier) Send(message string) string {
	return n.cfg.Prefix + ":" + message
}

// PrefixNotifier is a decorator with an extra constructor dependency.
type PrefixNotifier struct {
	inner Notifier
	cfg   *Config
}

func NewPrefixNotifier(inner Notifier, cfg *Config) *PrefixNotifier {
	return &PrefixNotifier{inner: inner, cfg: cfg}
}

func (n *PrefixNotifier) Send(message string) string {
	return fmt.Sprintf("%s(%s)", n.cfg.Prefix, n.inner.Send(message))
}

// ErrSMTPHandshake is returned by NewBrokenNotifier to exercise constructor
// failure paths.
var ErrSMTPHandshake = errors.New("smtp handshake failed")

// BrokenNotifier's constructor always fails.
type BrokenNotifier struct{}

func NewBrokenNotifier() (*BrokenNotifier, error) {
	return nil, ErrSMTPHandshake
}

func (n *BrokenNotifier) Send(message string) string {
	return message
}

// LoopA and LoopB form a constructor cycle for circular dependency tests.
type LoopA interface {
	A()
}

type LoopB interface {
	B()
}

type LoopAImpl struct {
	b LoopB
}

func NewLoopA(b LoopB) *LoopAImpl {
	return &LoopAImpl{b: b}
}

func (l *LoopAImpl) A() {}

type LoopBImpl struct {
	a LoopA
}

func NewLoopB(a LoopA) *LoopBImpl {
	return &LoopBImpl{a: a}
}

func (l *LoopBImpl) B() {}
