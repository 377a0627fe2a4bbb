package orchestrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erpdesk/printflow/internal/fleet"
)

var testDoc = fleet.DocumentRef{Type: fleet.DocInvoice, ID: "inv-42", Title: "Invoice 42"}

func TestSubmitRejectsCopiesOutOfRange(t *testing.T) {
	svc := &fakeService{}
	d := NewDispatcher(svc, nil)

	for _, copies := range []int{0, -1, 100} {
		_, err := d.Submit(context.Background(), testDoc, nil, copies)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrCopiesOutOfRange)

		var subErr *SubmissionError
		require.ErrorAs(t, err, &subErr)
	}
	require.Empty(t, svc.callLog(), "invalid copies must never reach the service")
}

func TestSubmitReturnsJobID(t *testing.T) {
	svc := &fakeService{
		submit: func(printerName *string, copies int) (string, error) {
			return "job-77", nil
		},
	}
	d := NewDispatcher(svc, nil)

	jobID, err := d.Submit(context.Background(), testDoc, nil, 2)
	require.NoError(t, err)
	require.Equal(t, "job-77", jobID)
	require.Nil(t, svc.lastSubmitPrinter)
	require.Equal(t, 2, svc.lastSubmitCopies)
}

func TestSubmitWrapsTransportError(t *testing.T) {
	svc := &fakeService{
		submit: func(printerName *string, copies int) (string, error) {
			return "", errors.New("http 503")
		},
	}
	d := NewDispatcher(svc, nil)

	_, err := d.Submit(context.Background(), testDoc, nil, 1)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Equal(t, "http 503", subErr.Message)
}
