package app

import (
	"context"

	"github.com/terrabook/terrabook/internal/clients"
	"github.com/terrabook/terrabook/internal/land"
	"github.com/terrabook/terrabook/internal/sales"
	"github.com/terrabook/terrabook/internal/users"
)

// displayEnricher resolves IDs to display names for sale listings. Lookups
// are best-effort: a failed lookup leaves the field blank rather than failing
// the listing.
type displayEnricher struct {
	clients *clients.Service
	users   *users.Service
	land    *land.Service
}

// NewDisplayEnricher builds the name resolver used by sale listings.
func NewDisplayEnricher(clientsSvc *clients.Service, usersSvc *users.Service, landSvc *land.Service) sales.DisplayEnricher {
	return &displayEnricher{clients: clientsSvc, users: usersSvc, land: landSvc}
}

func (e *displayEnricher) ClientName(ctx context.Context, id int64) string {
	if e.clients == nil || id == 0 {
		return ""
	}
	client, err := e.clients.GetClient(ctx, id)
	if err != nil {
		return ""
	}
	return client.FullName
}

func (e *displayEnricher) UserName(ctx context.Context, id int64) string {
	if e.users == nil || id == 0 {
		return ""
	}
	names, err := e.users.NamesByID(ctx, []int64{id})
	if err != nil {
		return ""
	}
	return names[id]
}

func (e *displayEnricher) ParcelLabel(ctx context.Context, id int64) (string, int64) {
	if e.land == nil || id == 0 {
		return "", 0
	}
	parcel, err := e.land.GetParcel(ctx, id)
	if err != nil {
		return "", 0
	}
	return parcel.Number, parcel.BatchID
}
