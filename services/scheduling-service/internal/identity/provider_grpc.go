//go:build protogen

package identity

import (
	"context"
	"time"

	"github.com/tutorslot/tutorslot/libs/grpcx"
	identityv1 "github.com/tutorslot/tutorslot/protos/gen/identity/v1"
)

// Account is the caller identity resolved from the identity service.
type Account struct {
	ID          string
	Role        string
	DisplayName string
	Active      bool
}

type Provider interface {
	GetAccount(ctx context.Context, accountID string) (Account, error)
}

type grpcProvider struct {
	client identityv1.IdentityServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: identityv1.NewIdentityServiceClient(conn)}, nil
}

func (p *grpcProvider) GetAccount(ctx context.Context, accountID string) (Account, error) {
	resp, err := p.client.GetAccount(ctx, &identityv1.AccountRequest{AccountId: accountID})
	if err != nil {
		return Account{}, err
	}
	return Account{
		ID:          resp.GetAccountId(),
		Role:        resp.GetRole(),
		DisplayName: resp.GetDisplayName(),
		Active:      resp.GetActive(),
	}, nil
}
