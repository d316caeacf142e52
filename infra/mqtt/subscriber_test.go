package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/infra/logger"
)

// generateCert writes a self-signed certificate used as client cert and CA.
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.True(t, opts.Order)
}

func TestNewEventSubscriberDefaults(t *testing.T) {
	_, err := NewEventSubscriber(Config{}, logger.NopLogger{})
	assert.Error(t, err)

	s, err := NewEventSubscriber(Config{Broker: "tcp://localhost:1883"}, logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, DefaultEventsTopic, s.cfg.EventsTopic)
	assert.True(t, strings.HasPrefix(s.cfg.ClientID, "printfleet-"))
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestRunForwardsEventsInOrder(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	s, err := NewEventSubscriber(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: 1}, logger.NopLogger{})
	require.NoError(t, err)

	out := make(chan model.DispatchEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx, out) }()

	require.Eventually(t, mc.hasHandler, time.Second, 5*time.Millisecond)
	topic, qos := mc.subscription()
	assert.Equal(t, DefaultEventsTopic, topic)
	assert.Equal(t, byte(1), qos)

	mc.deliver(`{"total":2,"dispatched":1,"dispatched_jobs":[{"job_id":1,"printer_name":"a"}]}`)
	mc.deliver(`not json`)
	mc.deliver(`{"total":2,"completed":1,"recent_event":{"job_id":1,"status":"completed"}}`)

	first := <-out
	second := <-out
	assert.Equal(t, 1, first.Dispatched)
	require.Len(t, first.DispatchedJobs, 1)
	assert.Equal(t, 1, *first.DispatchedJobs[0].JobID)
	require.NotNil(t, second.RecentEvent)
	assert.Equal(t, "completed", second.RecentEvent.Status)
	assert.Empty(t, out)

	cancel()
	require.NoError(t, <-errCh)
	assert.True(t, mc.disconnected())
}

func TestRunConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	withMock(t, mc)
	s, err := NewEventSubscriber(Config{Broker: "tcp://localhost:1883"}, logger.NopLogger{})
	require.NoError(t, err)
	err = s.Run(context.Background(), make(chan model.DispatchEvent))
	assert.ErrorContains(t, err, "refused")
}

func TestCloseUnblocksPendingDelivery(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	s, err := NewEventSubscriber(Config{Broker: "tcp://localhost:1883"}, logger.NopLogger{})
	require.NoError(t, err)
	s.out = make(chan model.DispatchEvent)
	done := make(chan struct{})
	go func() {
		s.onMessage(nil, mockMessage{[]byte(`{"total":1}`)})
		close(done)
	}()
	s.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("delivery still blocked after Close")
	}
}

// mockClient implements paho.Client for tests.
type mockClient struct {
	mu         sync.Mutex
	opts       *paho.ClientOptions
	topic      string
	qos        byte
	handler    paho.MessageHandler
	connectErr error
	closed     bool
}

func (m *mockClient) hasHandler() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

func (m *mockClient) subscription() (string, byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topic, m.qos
}

func (m *mockClient) disconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockClient) deliver(payload string) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(m, mockMessage{[]byte(payload)})
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
func (m *mockClient) Publish(string, byte, bool, interface{}) paho.Token { return &dummyToken{} }
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.mu.Lock()
	m.topic, m.qos, m.handler = topic, qos, h
	m.mu.Unlock()
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return DefaultEventsTopic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
