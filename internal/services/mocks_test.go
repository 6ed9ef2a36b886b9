package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockChatOwnerResolver struct {
	mock.Mock
}

func (m *MockChatOwnerResolver) ChatOwner(ctx context.Context, chatID int64) (int64, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(int64), args.Error(1)
}

type MockInvoiceNotifier struct {
	mock.Mock
}

func (m *MockInvoiceNotifier) InvoiceFunded(ctx context.Context, invoiceID string) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

type MockTransferSender struct {
	mock.Mock
}

func (m *MockTransferSender) Send(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransferResult), args.Error(1)
}
