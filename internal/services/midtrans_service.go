package services

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// GatewayClient is the part of the payment gateway the GatewayService drives.
type GatewayClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, error)
	// TransactionStatus returns the gateway's transaction_status for orderID.
	TransactionStatus(orderID string) (string, error)
	CancelTransaction(orderID string) error
	VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool
}

// MidtransService talks to Midtrans Snap and Core API.
type MidtransService struct {
	serverKey  string
	snapClient snap.Client
	coreClient coreapi.Client
}

var _ GatewayClient = (*MidtransService)(nil)

func NewMidtransService(serverKey string, production bool) *MidtransService {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	return &MidtransService{serverKey: serverKey, snapClient: s, coreClient: c}
}

func (s *MidtransService) CreateTransaction(req *snap.Request) (*snap.Response, error) {
	resp, merr := s.snapClient.CreateTransaction(req)
	if merr != nil {
		return nil, fmt.Errorf("midtrans create transaction error: %v", merr.Message)
	}
	return resp, nil
}

func (s *MidtransService) TransactionStatus(orderID string) (string, error) {
	resp, merr := s.coreClient.CheckTransaction(orderID)
	if merr != nil {
		return "", fmt.Errorf("midtrans check transaction error: %v", merr.Message)
	}
	return resp.TransactionStatus, nil
}

func (s *MidtransService) CancelTransaction(orderID string) error {
	if _, merr := s.coreClient.CancelTransaction(orderID); merr != nil {
		return fmt.Errorf("midtrans cancel transaction error: %v", merr.Message)
	}
	return nil
}

// VerifySignature checks SHA512(order_id + status_code + gross_amount + server key).
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return VerifyMidtransSignature(s.serverKey, orderID, statusCode, grossAmount, signatureKey)
}

func VerifyMidtransSignature(serverKey, orderID, statusCode, grossAmount, signatureKey string) bool {
	if signatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	want := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(signatureKey))) == 1
}
