package messenger

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/repo"
)

type memDevices struct {
	devices map[string]*domain.Device
}

func (m *memDevices) GetByID(_ context.Context, id string) (*domain.Device, error) {
	d, ok := m.devices[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return d, nil
}

type fakeSender struct {
	sent    []string
	bodies  []string
	sendErr error
}

func (f *fakeSender) Dial(context.Context, *domain.Device, string, string) (string, error) {
	return "", errors.New("not a dialer")
}

func (f *fakeSender) SendSMS(_ context.Context, _ *domain.Device, to, body string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, body)
	return "SM1", nil
}

func delivery(payload mq.SMSSendPayload) *mq.Delivery {
	return &mq.Delivery{Message: mq.Message{
		Type:    mq.MessageTypeSMSSend,
		Payload: payload,
	}}
}

func TestHandleSend_Delivers(t *testing.T) {
	sender := &fakeSender{}
	m := New(Config{
		Devices: &memDevices{devices: map[string]*domain.Device{
			"dev-1": {ID: "dev-1", Number: "+15550001111"},
		}},
		Sender: sender,
		Logger: slog.Default(),
	})

	err := m.HandleSend(context.Background(), delivery(mq.SMSSendPayload{
		DeviceID: "dev-1",
		To:       "+15559990000",
		Body:     "your order shipped",
	}))
	if err != nil {
		t.Fatalf("HandleSend: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "+15559990000" {
		t.Fatalf("unexpected sends: %v", sender.sent)
	}
	if sender.bodies[0] != "your order shipped" {
		t.Errorf("body = %q", sender.bodies[0])
	}
}

func TestHandleSend_MissingDeviceDropped(t *testing.T) {
	sender := &fakeSender{}
	m := New(Config{
		Devices: &memDevices{devices: map[string]*domain.Device{}},
		Sender:  sender,
		Logger:  slog.Default(),
	})

	err := m.HandleSend(context.Background(), delivery(mq.SMSSendPayload{
		DeviceID: "ghost",
		To:       "+15559990000",
	}))
	if err != nil {
		t.Fatalf("missing device must be dropped, not retried: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing must be sent: %v", sender.sent)
	}
}

func TestHandleSend_CarrierFailurePropagates(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("carrier down")}
	m := New(Config{
		Devices: &memDevices{devices: map[string]*domain.Device{
			"dev-1": {ID: "dev-1"},
		}},
		Sender: sender,
		Logger: slog.Default(),
	})

	err := m.HandleSend(context.Background(), delivery(mq.SMSSendPayload{
		DeviceID: "dev-1",
		To:       "+15559990000",
	}))
	if err == nil {
		t.Fatal("carrier failure must surface to the consumer")
	}
}
