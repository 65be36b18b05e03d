package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestSMTPService_SendReport(t *testing.T) {
	d := &fakeDialer{}
	svc := NewService(d, "lab@example.com")

	err := svc.SendReport(context.Background(), "patient@example.com", "CBC REPORT", "Please find your report attached.", Attachment{
		Filename:    "Test Patient_010124-001.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.3"),
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"lab@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"patient@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"CBC REPORT"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Test Patient_010124-001.pdf")
	assert.Contains(t, buf.String(), "application/pdf")
}

func TestSMTPService_SendFailure(t *testing.T) {
	svc := NewService(&fakeDialer{err: errors.New("connection refused")}, "lab@example.com")

	err := svc.SendReport(context.Background(), "a@example.com", "s", "b", Attachment{Filename: "r.pdf"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSMTPService_CanceledContext(t *testing.T) {
	d := &fakeDialer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewService(d, "lab@example.com").SendReport(ctx, "a@example.com", "s", "b", Attachment{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.sent)
}
